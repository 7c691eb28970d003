// Package sighting turns positive matches into entries of the sighting log.
package sighting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/matcher"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// Outcome describes what Record did with a match.
type Outcome struct {
	// Status is the identity's status as re-read at record time. Empty for
	// unknown faces.
	Status storage.Status
	// Sighting is set when a sighting was appended.
	Sighting *storage.Sighting
}

// Observer is told about every appended sighting.
type Observer func(s storage.Sighting)

// Recorder appends a sighting whenever a match resolves to an identity that
// is Wanted at that moment.
type Recorder struct {
	identities storage.IdentityStore
	sightings  storage.SightingStore
	location   storage.Location
	now        func() time.Time

	// mu makes the status check and the append one step, so one match event
	// yields at most one sighting.
	mu        sync.Mutex
	observers []Observer
}

// NewRecorder creates a Recorder that stamps sightings with location.
func NewRecorder(identities storage.IdentityStore, sightings storage.SightingStore, location storage.Location) *Recorder {
	return &Recorder{
		identities: identities,
		sightings:  sightings,
		location:   location,
		now:        time.Now,
	}
}

// OnRecord registers an observer for appended sightings.
func (r *Recorder) OnRecord(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Record handles one match result. Unknown results are a no-op. For a known
// identity the current status is read from the store; only Wanted yields a
// sighting. A store failure is returned and nothing is recorded.
func (r *Recorder) Record(ctx context.Context, res matcher.Result, sessionID string) (Outcome, error) {
	if !res.Known {
		return Outcome{}, nil
	}

	r.mu.Lock()
	out, err := r.record(ctx, res, sessionID)
	observers := r.observers
	r.mu.Unlock()

	if err != nil || out.Sighting == nil {
		return out, err
	}

	logging.Component("sighting").WithFields(logging.Fields{
		"identity": out.Sighting.IdentityID,
		"sighting": out.Sighting.ID,
		"session":  sessionID,
		"distance": res.Distance,
	}).Info("Wanted identity spotted")

	for _, o := range observers {
		o(*out.Sighting)
	}
	return out, nil
}

func (r *Recorder) record(ctx context.Context, res matcher.Result, sessionID string) (Outcome, error) {
	identity, err := r.identities.Get(ctx, res.Identity.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("read identity %s: %w", res.Identity.ID, err)
	}

	out := Outcome{Status: identity.Status}
	if identity.Status != storage.StatusWanted {
		return out, nil
	}

	s := &storage.Sighting{
		IdentityID:  identity.ID,
		Name:        identity.Name,
		Address:     identity.Address,
		PicturePath: identity.PicturePath,
		Status:      storage.StatusWanted,
		Latitude:    r.location.Latitude,
		Longitude:   r.location.Longitude,
		SessionID:   sessionID,
		Distance:    res.Distance,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.sightings.Append(ctx, s); err != nil {
		return Outcome{}, fmt.Errorf("append sighting for %s: %w", identity.ID, err)
	}
	out.Sighting = s
	return out, nil
}
