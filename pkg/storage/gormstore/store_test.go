package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(filepath.Join(t.TempDir(), "crimeapp.db"))
		require.NoError(t, err)
		return s
	})
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crimeapp.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, &storage.Identity{ID: "r1", Name: "Reopen", Status: storage.StatusWanted}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.GetStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusWanted, st)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.Error(t, err)
}
