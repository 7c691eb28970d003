// Package storage persists identities and their sightings.
// Two backends implement Store: FileStorage (one JSON document per record,
// optionally encrypted at rest with NaCl secretbox) and the SQLite-backed
// gormstore package.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the workflow state of an identity.
type Status string

const (
	StatusFree   Status = "Free"
	StatusWanted Status = "Wanted"
	StatusFound  Status = "Found"
)

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return StatusFree, nil
	case "wanted":
		return StatusWanted, nil
	case "found":
		return StatusFound, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s == StatusFree || s == StatusWanted || s == StatusFound
}

// CanTransitionTo reports whether an identity may move from s to next.
// Staying in the same state is always allowed.
//
//	Free   -> Wanted
//	Wanted -> Free, Found
//	Found  -> Wanted, Free
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return next.Valid()
	}
	switch s {
	case StatusFree:
		return next == StatusWanted
	case StatusWanted:
		return next == StatusFree || next == StatusFound
	case StatusFound:
		return next == StatusWanted || next == StatusFree
	}
	return false
}

// Kind separates criminal records from missing person reports. Both are
// matched the same way; an empty Kind reads as KindCriminal.
type Kind string

const (
	KindCriminal Kind = "criminal"
	KindMissing  Kind = "missing"
)

// ParseKind accepts a kind name in any letter case. Empty means criminal.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "criminal":
		return KindCriminal, nil
	case "missing":
		return KindMissing, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// OrDefault maps the empty kind to KindCriminal.
func (k Kind) OrDefault() Kind {
	if k == "" {
		return KindCriminal
	}
	return k
}

// Valid reports whether k is a known kind or empty.
func (k Kind) Valid() bool {
	return k == "" || k == KindCriminal || k == KindMissing
}

// Identity is a registered person.
type Identity struct {
	// ID is the national id number and the unique key.
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	PicturePath string    `json:"picture_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location is where a sighting happened.
type Location struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Sighting records a Wanted identity being spotted. Identity fields are a
// snapshot taken at the moment of the sighting.
type Sighting struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"identity_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	PicturePath string    `json:"picture_path"`
	Status      Status    `json:"status"`
	Latitude    string    `json:"latitude"`
	Longitude   string    `json:"longitude"`
	SessionID   string    `json:"session_id,omitempty"`
	Distance    float64   `json:"distance"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrIdentityNotFound is returned when no identity has the requested id.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrIdentityExists is returned when creating an identity whose id is taken.
var ErrIdentityExists = errors.New("identity already exists")

// ErrSightingNotFound is returned when no sighting has the requested id.
var ErrSightingNotFound = errors.New("sighting not found")

// ErrInvalidTransition is returned for a status change the workflow forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInvalidIdentity is returned for identities that fail validation.
var ErrInvalidIdentity = errors.New("invalid identity")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// IdentityStore holds registered identities.
type IdentityStore interface {
	// ListAll returns identities ordered by creation time, then id.
	ListAll(ctx context.Context) ([]Identity, error)
	Get(ctx context.Context, id string) (*Identity, error)
	GetStatus(ctx context.Context, id string) (Status, error)
	SetStatus(ctx context.Context, id string, status Status) error
	// Create fails with ErrIdentityExists when the id is taken.
	Create(ctx context.Context, identity *Identity) error
	DeleteAllIdentities(ctx context.Context) (int, error)
}

// SightingStore is the append-only sighting log.
type SightingStore interface {
	Append(ctx context.Context, sighting *Sighting) error
	// ListWhere returns sightings with the given snapshot status in creation
	// order. An empty status lists every sighting.
	ListWhere(ctx context.Context, status Status) ([]Sighting, error)
	GetSighting(ctx context.Context, id string) (*Sighting, error)
	DeleteAllSightings(ctx context.Context) (int, error)
}

// Store combines both stores behind one backend.
type Store interface {
	IdentityStore
	SightingStore
	Close() error
}

const maxIDLength = 64

// ValidateID checks an identity id. Ids double as file names, so only
// letters, digits, '-' and '_' are accepted.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidIdentity)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id longer than %d characters", ErrInvalidIdentity, maxIDLength)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: id contains %q", ErrInvalidIdentity, r)
		}
	}
	return nil
}

// Validate checks the fields required to create an identity.
func (i *Identity) Validate() error {
	if err := ValidateID(i.ID); err != nil {
		return err
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidIdentity)
	}
	if !i.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidIdentity, i.Status)
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("%w: kind %q", ErrInvalidIdentity, i.Kind)
	}
	return nil
}
