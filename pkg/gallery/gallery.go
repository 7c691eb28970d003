// Package gallery builds the in-memory set of known face encodings that
// queries are matched against.
package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/recognition"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// Entry pairs an identity with the encoding of its reference picture.
type Entry struct {
	Identity   storage.Identity
	Descriptor recognition.Descriptor
}

// Gallery is an ordered, read-only list of entries. Index i always refers
// to the identity the i-th descriptor was computed from.
type Gallery struct {
	entries []Entry
}

// New returns a gallery over entries, in the given order.
func New(entries []Entry) *Gallery {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Gallery{entries: cp}
}

// Len returns the number of entries. A nil gallery is empty.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// At returns the entry at index i.
func (g *Gallery) At(i int) Entry {
	return g.entries[i]
}

// Descriptors returns the encodings in index order.
func (g *Gallery) Descriptors() []recognition.Descriptor {
	if g == nil {
		return nil
	}
	out := make([]recognition.Descriptor, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.Descriptor
	}
	return out
}

// Entries returns a copy of all entries.
func (g *Gallery) Entries() []Entry {
	if g == nil {
		return nil
	}
	cp := make([]Entry, len(g.entries))
	copy(cp, g.entries)
	return cp
}

// ImageLoader loads a stored picture reference as JPEG bytes.
type ImageLoader interface {
	Load(ref string) ([]byte, error)
}

// FaceDetector finds faces and yields their encodings.
type FaceDetector interface {
	DetectFaces(jpeg []byte) ([]recognition.Face, error)
	Encoding(f recognition.Face) (recognition.Descriptor, error)
}

// IdentityLister lists registered identities.
type IdentityLister interface {
	ListAll(ctx context.Context) ([]storage.Identity, error)
}

// Skip reasons.
const (
	ReasonImageLoad = "image_load"
	ReasonNoFace    = "no_face"
	ReasonEncoding  = "encoding_failed"
	ReasonDetection = "detection_failed"
)

// Skip records an identity left out of the gallery.
type Skip struct {
	IdentityID string `json:"identity_id"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

// Report summarizes a build.
type Report struct {
	Total   int    `json:"total"`
	Added   int    `json:"added"`
	Skipped []Skip `json:"skipped,omitempty"`
}

// Builder turns identities into a Gallery.
type Builder struct {
	loader   ImageLoader
	detector FaceDetector
	// Progress, when set, is called after each identity is processed.
	Progress func(done, total int)
}

// NewBuilder creates a Builder.
func NewBuilder(loader ImageLoader, detector FaceDetector) *Builder {
	return &Builder{loader: loader, detector: detector}
}

// Build encodes the reference picture of every identity, in input order.
// Identities whose picture cannot be loaded, has no face or cannot be
// encoded are skipped with a warning. Only the first detected face of a
// picture is used. The returned error is non-nil only when ctx is done.
func (b *Builder) Build(ctx context.Context, identities []storage.Identity) (*Gallery, Report, error) {
	log := logging.Component("gallery")
	report := Report{Total: len(identities)}
	entries := make([]Entry, 0, len(identities))

	for i, identity := range identities {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		desc, skip := b.encode(identity)
		if skip != nil {
			report.Skipped = append(report.Skipped, *skip)
			log.WithFields(logging.Fields{
				"identity": identity.ID,
				"picture":  identity.PicturePath,
				"reason":   skip.Reason,
			}).WithError(skip.Err).Warn("Skipping identity")
		} else {
			entries = append(entries, Entry{Identity: identity, Descriptor: desc})
		}

		if b.Progress != nil {
			b.Progress(i+1, len(identities))
		}
	}

	report.Added = len(entries)
	log.WithFields(logging.Fields{
		"total":   report.Total,
		"added":   report.Added,
		"skipped": len(report.Skipped),
	}).Info("Gallery built")

	return &Gallery{entries: entries}, report, nil
}

func (b *Builder) encode(identity storage.Identity) (recognition.Descriptor, *Skip) {
	data, err := b.loader.Load(identity.PicturePath)
	if err != nil {
		return recognition.Descriptor{}, &Skip{IdentityID: identity.ID, Reason: ReasonImageLoad, Err: err}
	}

	faces, err := b.detector.DetectFaces(data)
	switch {
	case errors.Is(err, recognition.ErrNoFaceDetected) || (err == nil && len(faces) == 0):
		return recognition.Descriptor{}, &Skip{IdentityID: identity.ID, Reason: ReasonNoFace, Err: recognition.ErrNoFaceDetected}
	case err != nil:
		return recognition.Descriptor{}, &Skip{IdentityID: identity.ID, Reason: ReasonDetection, Err: err}
	}

	desc, err := b.detector.Encoding(faces[0])
	if err != nil {
		return recognition.Descriptor{}, &Skip{IdentityID: identity.ID, Reason: ReasonEncoding, Err: err}
	}
	return desc, nil
}

// BuildFromStore lists every identity and builds a gallery from them.
func (b *Builder) BuildFromStore(ctx context.Context, lister IdentityLister) (*Gallery, Report, error) {
	identities, err := lister.ListAll(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("list identities: %w", err)
	}
	return b.Build(ctx, identities)
}
