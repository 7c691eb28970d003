package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/matcher"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/media"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/metrics"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/recognition"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/sighting"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// Recorder turns a match into a sighting when the identity is Wanted.
type Recorder interface {
	Record(ctx context.Context, res matcher.Result, sessionID string) (sighting.Outcome, error)
}

// Detection is one face found in a frame.
type Detection struct {
	Box      recognition.Box   `json:"box"`
	Result   matcher.Result    `json:"result"`
	Status   storage.Status    `json:"status,omitempty"`
	Sighting *storage.Sighting `json:"sighting,omitempty"`
	Label    string            `json:"label"`
}

// LabelFunc renders the caption drawn under a face.
type LabelFunc func(d Detection) string

// UnknownLabel is the caption for faces that matched nobody.
const UnknownLabel = "Unknown"

// WebcamLabel captions live frames with the identity's details and current
// status.
func WebcamLabel(d Detection) string {
	if !d.Result.Known {
		return UnknownLabel
	}
	id := d.Result.Identity
	return fmt.Sprintf("Name: %s, AadharNo: %s, Address %s, Status: %s", id.Name, id.ID, id.Address, d.Status)
}

// PictureLabel captions uploaded pictures with name and address.
func PictureLabel(d Detection) string {
	if !d.Result.Known {
		return UnknownLabel
	}
	return d.Result.Identity.Name + " " + d.Result.Identity.Address
}

// Labels converts detections to drawable labels. Wanted identities are
// highlighted.
func Labels(detections []Detection) []media.Label {
	labels := make([]media.Label, len(detections))
	for i, d := range detections {
		labels[i] = media.Label{
			Rect:      d.Box.Rect(),
			Text:      d.Label,
			Highlight: d.Status == storage.StatusWanted,
		}
	}
	return labels
}

// Pipeline runs detection, encoding, matching and recording for one image.
type Pipeline struct {
	Detector gallery.FaceDetector
	Matcher  *matcher.Matcher
	// Recorder is optional; without it matches are never recorded.
	Recorder Recorder
	Metrics  *metrics.Metrics
	Label    LabelFunc
}

// Process handles one JPEG image. No faces yields an empty result. A face
// whose encoding fails is skipped without affecting the others.
func (p *Pipeline) Process(ctx context.Context, g *gallery.Gallery, jpeg []byte, sessionID string) ([]Detection, error) {
	faces, err := p.Detector.DetectFaces(jpeg)
	if errors.Is(err, recognition.ErrNoFaceDetected) {
		return []Detection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	label := p.Label
	if label == nil {
		label = WebcamLabel
	}

	// A sighting already matched is written even if ctx ends meanwhile.
	recordCtx := context.WithoutCancel(ctx)

	detections := make([]Detection, 0, len(faces))
	for i, f := range faces {
		if err := ctx.Err(); err != nil {
			return detections, err
		}

		desc, err := p.Detector.Encoding(f)
		if err != nil {
			logging.Debugf("Skipping face %d: %v", i, err)
			continue
		}

		res := p.Matcher.Match(desc, g)
		p.Metrics.IncMatch(res.Known)

		d := Detection{Box: f.Box, Result: res, Status: res.Identity.Status}
		if res.Known && p.Recorder != nil {
			out, err := p.Recorder.Record(recordCtx, res, sessionID)
			if err != nil {
				logging.Component("session").WithError(err).WithField("identity", res.Identity.ID).Warn("Failed to record match")
				p.Metrics.IncFrameError()
			} else {
				d.Status = out.Status
				d.Sighting = out.Sighting
			}
		}
		d.Label = label(d)
		detections = append(detections, d)
	}
	return detections, nil
}
