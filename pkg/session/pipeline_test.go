package session

import (
	"context"
	"errors"
	"testing"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/matcher"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/recognition"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/sighting"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

func buildGallery(t *testing.T, fs *storage.FileStorage, detector *MockDetector) *gallery.Gallery {
	t.Helper()
	g, _, err := gallery.NewBuilder(MockLoader{}, detector).BuildFromStore(context.Background(), fs)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestPipeline_NoFaces(t *testing.T) {
	fs := newStore(t)
	detector := newDetector()
	p := newPipeline(detector, fs, true)

	got, err := p.Process(context.Background(), buildGallery(t, fs, detector), []byte("frame-empty"), "s")
	if err != nil {
		t.Fatalf("no faces is not an error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected an empty, non-nil result, got %v", got)
	}
}

func TestPipeline_RecordsWanted(t *testing.T) {
	fs := newStore(t)
	detector := newDetector()
	p := newPipeline(detector, fs, true)

	got, err := p.Process(context.Background(), buildGallery(t, fs, detector), []byte("frame-two"), "sess")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(got))
	}

	wanted := got[0]
	if !wanted.Result.Known || wanted.Result.Identity.ID != "w1" {
		t.Fatalf("first face should match w1: %+v", wanted.Result)
	}
	if wanted.Sighting == nil || wanted.Status != storage.StatusWanted {
		t.Errorf("expected a recorded sighting: %+v", wanted)
	}
	if want := "Name: W One, AadharNo: w1, Address Varanasi, Status: Wanted"; wanted.Label != want {
		t.Errorf("label = %q, want %q", wanted.Label, want)
	}
	if wanted.Box.Left != 10 || wanted.Box.Bottom != 140 {
		t.Errorf("box not carried over: %+v", wanted.Box)
	}

	unknown := got[1]
	if unknown.Result.Known || unknown.Label != UnknownLabel || unknown.Sighting != nil {
		t.Errorf("second face should be unknown: %+v", unknown)
	}

	all, _ := fs.ListWhere(context.Background(), "")
	if len(all) != 1 {
		t.Errorf("expected 1 sighting, got %d", len(all))
	}
}

// cancellingRecorder cancels the frame context on its first call.
type cancellingRecorder struct {
	inner  Recorder
	cancel context.CancelFunc
	ctxErr error
}

func (r *cancellingRecorder) Record(ctx context.Context, res matcher.Result, sessionID string) (sighting.Outcome, error) {
	r.cancel()
	r.ctxErr = ctx.Err()
	return r.inner.Record(ctx, res, sessionID)
}

func TestPipeline_CancelKeepsRecordedFaces(t *testing.T) {
	fs := newStore(t)
	detector := newDetector()
	g := buildGallery(t, fs, detector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &cancellingRecorder{inner: sighting.NewRecorder(fs, fs, testLocation), cancel: cancel}
	p := newPipeline(detector, fs, false)
	p.Recorder = rec

	got, err := p.Process(ctx, g, []byte("frame-two"), "s")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rec.ctxErr != nil {
		t.Errorf("recording must not see the cancellation, got %v", rec.ctxErr)
	}
	if len(got) != 1 || got[0].Sighting == nil {
		t.Fatalf("expected the recorded face to be returned, got %+v", got)
	}

	all, _ := fs.ListWhere(context.Background(), "")
	if len(all) != 1 {
		t.Errorf("expected 1 sighting, got %d", len(all))
	}
}

func TestPipeline_FreeIdentityNotRecorded(t *testing.T) {
	fs := newStore(t)
	detector := newDetector()
	p := newPipeline(detector, fs, true)

	got, err := p.Process(context.Background(), buildGallery(t, fs, detector), []byte("frame-f1"), "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sighting != nil || got[0].Status != storage.StatusFree {
		t.Errorf("unexpected detections %+v", got)
	}
}

func TestPipeline_EncodingFailureSkipsOnlyThatFace(t *testing.T) {
	fs := newStore(t)
	detector := newDetector()
	g := buildGallery(t, fs, detector)

	broken := face(0)
	broken.Descriptor = recognition.Descriptor{}
	detector.Faces["frame-mixed"] = []recognition.Face{broken, face(1.1)}
	detector.EncodingFunc = func(f recognition.Face) (recognition.Descriptor, error) {
		return recognition.ValidateDescriptor(f.Descriptor)
	}

	got, err := newPipeline(detector, fs, false).Process(context.Background(), g, []byte("frame-mixed"), "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Result.Identity.ID != "w1" {
		t.Errorf("expected only the good face, got %+v", got)
	}
}

func TestPipeline_WithoutRecorder(t *testing.T) {
	fs := newStore(t)
	detector := newDetector()
	p := newPipeline(detector, fs, false)
	p.Label = PictureLabel

	got, err := p.Process(context.Background(), buildGallery(t, fs, detector), []byte("frame-w1"), "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sighting != nil {
		t.Fatalf("nothing should be recorded: %+v", got)
	}
	if got[0].Status != storage.StatusWanted {
		t.Errorf("status should come from the gallery snapshot, got %q", got[0].Status)
	}
	if got[0].Label != "W One Varanasi" {
		t.Errorf("label = %q", got[0].Label)
	}

	all, _ := fs.ListWhere(context.Background(), "")
	if len(all) != 0 {
		t.Errorf("expected no sightings, got %d", len(all))
	}
}

type errDetector struct{ MockDetector }

func (errDetector) DetectFaces(data []byte) ([]recognition.Face, error) {
	return nil, errors.New("engine failure")
}

func TestPipeline_DetectorError(t *testing.T) {
	p := &Pipeline{Detector: &errDetector{}, Matcher: newMatcher()}
	if _, err := p.Process(context.Background(), nil, []byte("x"), "s"); err == nil {
		t.Error("expected detector error to propagate")
	}
}

func TestLabels(t *testing.T) {
	dets := []Detection{
		{Box: recognition.Box{Top: 1, Right: 4, Bottom: 3, Left: 2}, Label: "a", Status: storage.StatusWanted},
		{Label: "b", Status: storage.StatusFree},
	}
	labels := Labels(dets)
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(labels))
	}
	if !labels[0].Highlight || labels[1].Highlight {
		t.Error("only Wanted identities are highlighted")
	}
	if labels[0].Rect.Min.X != 2 || labels[0].Rect.Max.Y != 3 || labels[0].Text != "a" {
		t.Errorf("unexpected label %+v", labels[0])
	}
}
