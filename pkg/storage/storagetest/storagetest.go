// Package storagetest holds the behavior every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The store is closed by the suite.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func identity(id string, offset time.Duration) *storage.Identity {
	return &storage.Identity{
		ID:          id,
		Name:        "Person " + id,
		Address:     "Street " + id,
		Kind:        storage.KindCriminal,
		Status:      storage.StatusFree,
		PicturePath: id + ".jpg",
		CreatedAt:   base.Add(offset),
	}
}

// Run exercises a backend against the Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore) })
	t.Run("CreateInvalid", func(t *testing.T) { testCreateInvalid(t, newStore) })
	t.Run("ListAllOrder", func(t *testing.T) { testListAllOrder(t, newStore) })
	t.Run("Status", func(t *testing.T) { testStatus(t, newStore) })
	t.Run("SightingLog", func(t *testing.T) { testSightingLog(t, newStore) })
	t.Run("GetSighting", func(t *testing.T) { testGetSighting(t, newStore) })
	t.Run("DeleteAll", func(t *testing.T) { testDeleteAll(t, newStore) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore) })
}

func open(t *testing.T, newStore Factory) storage.Store {
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCreateAndGet(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	in := identity("A1", 0)
	in.Kind = storage.KindMissing
	require.NoError(t, s.Create(ctx, in))

	got, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Person A1", got.Name)
	assert.Equal(t, "Street A1", got.Address)
	assert.Equal(t, storage.StatusFree, got.Status)
	assert.Equal(t, "A1.jpg", got.PicturePath)
	assert.Equal(t, storage.KindMissing, got.Kind)
	assert.True(t, got.CreatedAt.Equal(in.CreatedAt), "created_at %v != %v", got.CreatedAt, in.CreatedAt)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrIdentityNotFound)
}

func testCreateDuplicate(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, identity("dup", 0)))
	other := identity("dup", time.Minute)
	other.Name = "Someone Else"
	assert.ErrorIs(t, s.Create(ctx, other), storage.ErrIdentityExists)

	got, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "Person dup", got.Name, "duplicate create must not overwrite")
}

func testCreateInvalid(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	bad := []*storage.Identity{
		{ID: "", Name: "x", Status: storage.StatusFree},
		{ID: "../etc", Name: "x", Status: storage.StatusFree},
		{ID: "ok", Name: " ", Status: storage.StatusFree},
		{ID: "ok", Name: "x", Status: "Arrested"},
		{ID: "ok", Name: "x", Status: storage.StatusFree, Kind: "suspect"},
	}
	for _, b := range bad {
		assert.ErrorIs(t, s.Create(ctx, b), storage.ErrInvalidIdentity, "id=%q", b.ID)
	}
}

func testListAllOrder(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, identity("c", 2*time.Second)))
	require.NoError(t, s.Create(ctx, identity("b", time.Second)))
	require.NoError(t, s.Create(ctx, identity("a", 2*time.Second)))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func testStatus(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, identity("s1", 0)))

	require.NoError(t, s.SetStatus(ctx, "s1", storage.StatusWanted))
	st, err := s.GetStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusWanted, st)

	assert.ErrorIs(t, s.SetStatus(ctx, "nobody", storage.StatusWanted), storage.ErrIdentityNotFound)
	_, err = s.GetStatus(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrIdentityNotFound)
	assert.Error(t, s.SetStatus(ctx, "s1", "Bogus"))
}

func testSightingLog(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	for i, st := range []storage.Status{storage.StatusWanted, storage.StatusWanted, storage.StatusFound} {
		require.NoError(t, s.Append(ctx, &storage.Sighting{
			IdentityID: fmt.Sprintf("p%d", i),
			Name:       fmt.Sprintf("Person %d", i),
			Status:     st,
			Latitude:   "25.3176° N",
			Longitude:  "82.9739° E",
			SessionID:  "sess",
			Distance:   0.3,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	wanted, err := s.ListWhere(ctx, storage.StatusWanted)
	require.NoError(t, err)
	require.Len(t, wanted, 2)
	assert.Equal(t, "p0", wanted[0].IdentityID)
	assert.Equal(t, "p1", wanted[1].IdentityID)
	assert.NotEmpty(t, wanted[0].ID)
	assert.Equal(t, "25.3176° N", wanted[0].Latitude)

	all, err := s.ListWhere(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ListWhere(ctx, storage.StatusFree)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testGetSighting(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	sg := &storage.Sighting{IdentityID: "x", Name: "X", Status: storage.StatusWanted}
	require.NoError(t, s.Append(ctx, sg))
	require.NotEmpty(t, sg.ID, "Append assigns an id")
	require.False(t, sg.CreatedAt.IsZero(), "Append assigns a timestamp")

	got, err := s.GetSighting(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.IdentityID)

	_, err = s.GetSighting(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, storage.ErrSightingNotFound)
}

func testDeleteAll(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, identity("d1", 0)))
	require.NoError(t, s.Create(ctx, identity("d2", 0)))
	require.NoError(t, s.Append(ctx, &storage.Sighting{IdentityID: "d1", Status: storage.StatusWanted}))

	n, err := s.DeleteAllIdentities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteAllSightings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	sightings, err := s.ListWhere(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, sightings)
}

func testConcurrentCreate(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(ctx, identity("same", 0))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, storage.ErrIdentityExists):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created, "exactly one concurrent create may succeed")
}
