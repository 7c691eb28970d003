package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/media"
)

// Normalizer turns uploaded bytes into detector-ready JPEG.
type Normalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// OneShotResult is the outcome of matching one uploaded picture.
type OneShotResult struct {
	SessionID  string         `json:"session_id"`
	Source     string         `json:"source"`
	ResultPath string         `json:"result_path,omitempty"`
	Detections []Detection    `json:"detections"`
	Report     gallery.Report `json:"gallery"`
}

// OneShot matches a single picture against a freshly built gallery. Each
// OneShot runs at most once.
type OneShot struct {
	normalizer Normalizer
	builder    GalleryBuilder
	identities gallery.IdentityLister
	pipeline   *Pipeline
	annotate   AnnotateFunc
	resultsDir string

	ran atomic.Bool
}

// NewOneShot creates a OneShot. The annotated picture is written to
// resultsDir unless it is empty.
func NewOneShot(normalizer Normalizer, builder GalleryBuilder, identities gallery.IdentityLister, pipeline *Pipeline, annotate AnnotateFunc, resultsDir string) *OneShot {
	return &OneShot{
		normalizer: normalizer,
		builder:    builder,
		identities: identities,
		pipeline:   pipeline,
		annotate:   annotate,
		resultsDir: resultsDir,
	}
}

// Run matches data, an uploaded picture named name. A second call returns
// ErrAlreadyRan.
func (o *OneShot) Run(ctx context.Context, name string, data []byte) (*OneShotResult, error) {
	if !o.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRan
	}

	res := &OneShotResult{SessionID: uuid.NewString(), Source: name}
	log := logging.Component("oneshot").WithFields(logging.Fields{
		"session": res.SessionID,
		"source":  name,
	})

	img, err := o.normalizer.Normalize(data)
	if err != nil {
		var loadErr *media.ImageLoadError
		if !errors.As(err, &loadErr) {
			err = &media.ImageLoadError{Path: name, Err: err}
		}
		return nil, NewError(CodeImageLoad, err)
	}

	g, report, err := o.builder.BuildFromStore(ctx, o.identities)
	if err != nil {
		return nil, NewError(CodeGalleryFailed, err)
	}
	res.Report = report

	detections, err := o.pipeline.Process(ctx, g, img, res.SessionID)
	if err != nil {
		return nil, fmt.Errorf("process picture: %w", err)
	}
	res.Detections = detections

	if o.resultsDir != "" {
		out := img
		if o.annotate != nil {
			if out, err = o.annotate(img, Labels(detections)); err != nil {
				return nil, fmt.Errorf("annotate picture: %w", err)
			}
		}
		if res.ResultPath, err = media.SaveResult(o.resultsDir, name, out); err != nil {
			return nil, fmt.Errorf("save result: %w", err)
		}
	}

	log.WithFields(logging.Fields{
		"faces":  len(detections),
		"result": res.ResultPath,
	}).Info("Picture processed")
	return res, nil
}
