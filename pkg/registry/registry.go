// Package registry implements the administrative side of the identity
// workflow: registering citizens and missing persons, flagging them Wanted,
// Free or Found, counting records and wiping them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/media"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// Registration holds the form fields for a new citizen.
type Registration struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	// Kind is "criminal" (the default) or "missing".
	Kind string `json:"kind"`
	// Filename is the uploaded picture's original name.
	Filename string `json:"filename"`
}

// ClearReport counts what ClearAll removed.
type ClearReport struct {
	Pictures   int `json:"pictures"`
	Results    int `json:"results"`
	Identities int `json:"identities"`
	Sightings  int `json:"sightings"`
}

// Stats counts the records in the store.
type Stats struct {
	Identities    int                    `json:"identities"`
	ByKind        map[storage.Kind]int   `json:"by_kind"`
	ByStatus      map[storage.Status]int `json:"by_status"`
	Sightings     int                    `json:"sightings"`
	CurrentWanted int                    `json:"current_wanted"`
}

// Registry wraps a store with the media directories that belong to it.
type Registry struct {
	store      storage.Store
	mediaDir   string
	resultsDir string
}

// New creates a Registry.
func New(store storage.Store, mediaDir, resultsDir string) *Registry {
	return &Registry{store: store, mediaDir: mediaDir, resultsDir: resultsDir}
}

// Register saves picture into the media directory and creates the identity
// with status Free. The stored picture is removed again if the identity
// cannot be created.
func (r *Registry) Register(ctx context.Context, reg Registration, picture io.Reader) (*storage.Identity, error) {
	kind, err := storage.ParseKind(reg.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidIdentity, err)
	}
	id := strings.Join(strings.Fields(reg.NationalID), "")
	identity := &storage.Identity{
		ID:      id,
		Name:    strings.TrimSpace(reg.Name),
		Address: strings.TrimSpace(reg.Address),
		Kind:    kind,
		Status:  storage.StatusFree,
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	filename := reg.Filename
	if filename == "" {
		filename = id + ".jpg"
	}
	stored, err := media.StorePicture(r.mediaDir, filename, picture)
	if err != nil {
		return nil, fmt.Errorf("store picture: %w", err)
	}
	identity.PicturePath = stored

	if err := r.store.Create(ctx, identity); err != nil {
		os.Remove(filepath.Join(r.mediaDir, stored))
		return nil, err
	}

	logging.Component("registry").WithFields(logging.Fields{
		"identity": identity.ID,
		"kind":     identity.Kind,
		"picture":  stored,
	}).Info("Citizen registered")
	return identity, nil
}

// SetWanted flags an identity as Wanted.
func (r *Registry) SetWanted(ctx context.Context, id string) (*storage.Identity, error) {
	return r.transition(ctx, id, storage.StatusWanted)
}

// SetFree clears an identity's Wanted or Found flag.
func (r *Registry) SetFree(ctx context.Context, id string) (*storage.Identity, error) {
	return r.transition(ctx, id, storage.StatusFree)
}

// MarkFound resolves a sighting to its identity and moves it from Wanted to
// Found. The sighting itself is immutable.
func (r *Registry) MarkFound(ctx context.Context, sightingID string) (*storage.Identity, error) {
	s, err := r.store.GetSighting(ctx, sightingID)
	if err != nil {
		return nil, err
	}
	return r.transition(ctx, s.IdentityID, storage.StatusFound)
}

func (r *Registry) transition(ctx context.Context, id string, next storage.Status) (*storage.Identity, error) {
	identity, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Status == next {
		return identity, nil
	}
	if !identity.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, identity.Status, next)
	}
	if err := r.store.SetStatus(ctx, id, next); err != nil {
		return nil, err
	}

	logging.Component("registry").WithFields(logging.Fields{
		"identity": id,
		"from":     identity.Status,
		"to":       next,
	}).Info("Status changed")
	identity.Status = next
	return identity, nil
}

// ListIdentities returns the registered identities of the given kind, or
// all of them when kind is empty.
func (r *Registry) ListIdentities(ctx context.Context, kind storage.Kind) ([]storage.Identity, error) {
	all, err := r.store.ListAll(ctx)
	if err != nil || kind == "" {
		return all, err
	}
	out := make([]storage.Identity, 0, len(all))
	for _, identity := range all {
		if identity.Kind.OrDefault() == kind.OrDefault() {
			out = append(out, identity)
		}
	}
	return out, nil
}

// Stats counts identities by kind and status, and sightings overall and of
// identities that are still Wanted.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	identities, err := r.store.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	sightings, err := r.store.ListWhere(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	current, err := r.ListCurrentWanted(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Identities: len(identities),
		ByKind: map[storage.Kind]int{
			storage.KindCriminal: 0,
			storage.KindMissing:  0,
		},
		ByStatus: map[storage.Status]int{
			storage.StatusFree:   0,
			storage.StatusWanted: 0,
			storage.StatusFound:  0,
		},
		Sightings:     len(sightings),
		CurrentWanted: len(current),
	}
	for _, identity := range identities {
		st.ByKind[identity.Kind.OrDefault()]++
		st.ByStatus[identity.Status]++
	}
	return st, nil
}

// ListCurrentWanted returns Wanted sightings whose identity is still Wanted.
// Sightings of identities that were since deleted are dropped.
func (r *Registry) ListCurrentWanted(ctx context.Context) ([]storage.Sighting, error) {
	sightings, err := r.store.ListWhere(ctx, storage.StatusWanted)
	if err != nil {
		return nil, err
	}

	status := make(map[string]storage.Status)
	out := make([]storage.Sighting, 0, len(sightings))
	for _, s := range sightings {
		st, ok := status[s.IdentityID]
		if !ok {
			st, err = r.store.GetStatus(ctx, s.IdentityID)
			if errors.Is(err, storage.ErrIdentityNotFound) {
				st = ""
			} else if err != nil {
				return nil, err
			}
			status[s.IdentityID] = st
		}
		if st == storage.StatusWanted {
			out = append(out, s)
		}
	}
	return out, nil
}

// ClearAll deletes reference pictures, annotated results, identities and
// sightings.
func (r *Registry) ClearAll(ctx context.Context) (ClearReport, error) {
	var report ClearReport
	var err error

	if report.Pictures, err = media.ClearDir(r.mediaDir); err != nil {
		return report, fmt.Errorf("clear media directory: %w", err)
	}
	if report.Results, err = media.ClearDir(r.resultsDir); err != nil {
		return report, fmt.Errorf("clear results directory: %w", err)
	}
	if report.Sightings, err = r.store.DeleteAllSightings(ctx); err != nil {
		return report, fmt.Errorf("delete sightings: %w", err)
	}
	if report.Identities, err = r.store.DeleteAllIdentities(ctx); err != nil {
		return report, fmt.Errorf("delete identities: %w", err)
	}

	logging.Component("registry").WithFields(logging.Fields{
		"pictures":   report.Pictures,
		"results":    report.Results,
		"identities": report.Identities,
		"sightings":  report.Sightings,
	}).Warn("All records cleared")
	return report, nil
}
