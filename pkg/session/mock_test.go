package session

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/camera"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/matcher"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/media"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/recognition"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/sighting"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// MockCamera implements Camera for testing
type MockCamera struct {
	OpenFunc      func(device string) error
	ReadFrameFunc func() (*camera.Frame, error)

	closes atomic.Int32
	reads  atomic.Int32
}

func (m *MockCamera) Open(device string) error {
	if m.OpenFunc != nil {
		return m.OpenFunc(device)
	}
	return nil
}

func (m *MockCamera) ReadFrame() (*camera.Frame, error) {
	m.reads.Add(1)
	if m.ReadFrameFunc != nil {
		return m.ReadFrameFunc()
	}
	return nil, io.EOF
}

func (m *MockCamera) Close() error {
	m.closes.Add(1)
	return nil
}

// playback returns the given frames in order, then io.EOF.
func playback(data ...string) func() (*camera.Frame, error) {
	var mu sync.Mutex
	i := 0
	return func() (*camera.Frame, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(data) {
			return nil, io.EOF
		}
		i++
		return &camera.Frame{Data: []byte(data[i-1]), Seq: uint64(i)}, nil
	}
}

// live returns the same frame forever at roughly 1000 fps.
func live(data string) func() (*camera.Frame, error) {
	return func() (*camera.Frame, error) {
		time.Sleep(time.Millisecond)
		return &camera.Frame{Data: []byte(data)}, nil
	}
}

// MockDetector maps image contents to faces. "frame-panic" panics.
type MockDetector struct {
	Faces        map[string][]recognition.Face
	EncodingFunc func(f recognition.Face) (recognition.Descriptor, error)
}

func (m *MockDetector) DetectFaces(data []byte) ([]recognition.Face, error) {
	if string(data) == "frame-panic" {
		panic("detector crashed")
	}
	faces := m.Faces[string(data)]
	if len(faces) == 0 {
		return nil, recognition.ErrNoFaceDetected
	}
	return faces, nil
}

func (m *MockDetector) Encoding(f recognition.Face) (recognition.Descriptor, error) {
	if m.EncodingFunc != nil {
		return m.EncodingFunc(f)
	}
	return f.Descriptor, nil
}

type MockLoader struct{}

func (MockLoader) Load(ref string) ([]byte, error) {
	return []byte(ref), nil
}

type MockLister struct {
	Err error
}

func (m MockLister) ListAll(ctx context.Context) ([]storage.Identity, error) {
	return nil, m.Err
}

type MockNormalizer struct {
	NormalizeFunc func(data []byte) ([]byte, error)
}

func (m *MockNormalizer) Normalize(data []byte) ([]byte, error) {
	if m.NormalizeFunc != nil {
		return m.NormalizeFunc(data)
	}
	return data, nil
}

type MockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *MockNotifier) Notify(eventType string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

func (m *MockNotifier) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func desc(v float32) recognition.Descriptor {
	return recognition.Descriptor{v}
}

func face(v float32) recognition.Face {
	return recognition.Face{
		Box:        recognition.BoxFromRect(image.Rect(10, 20, 110, 140)),
		Descriptor: desc(v),
	}
}

// newDetector knows the reference pictures of w1 (Wanted) and f1 (Free)
// and a few camera frames.
func newDetector() *MockDetector {
	return &MockDetector{Faces: map[string][]recognition.Face{
		"w1.jpg":   {face(1)},
		"f1.jpg":   {face(5)},
		"frame-w1": {face(1.1)},
		"frame-f1": {face(5.2)},
		"frame-x":  {face(20)},
		"frame-two": {
			face(1.05),
			face(20),
		},
	}}
}

var testLocation = storage.Location{Latitude: "25.3176° N", Longitude: "82.9739° E"}

func newStore(t *testing.T) *storage.FileStorage {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []storage.Identity{
		{ID: "w1", Name: "W One", Address: "Varanasi", PicturePath: "w1.jpg", Status: storage.StatusWanted},
		{ID: "f1", Name: "F One", Address: "Delhi", PicturePath: "f1.jpg", Status: storage.StatusFree},
	} {
		id := id
		if err := fs.Create(context.Background(), &id); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func newMatcher() *matcher.Matcher {
	return matcher.New(recognition.EuclideanDistance, func(a, b recognition.Descriptor) bool {
		return recognition.EuclideanDistance(a, b) <= recognition.DefaultTolerance
	})
}

func newPipeline(detector *MockDetector, fs *storage.FileStorage, record bool) *Pipeline {
	p := &Pipeline{Detector: detector, Matcher: newMatcher(), Label: WebcamLabel}
	if record {
		p.Recorder = sighting.NewRecorder(fs, fs, testLocation)
	}
	return p
}

func fakeAnnotate(jpeg []byte, labels []media.Label) ([]byte, error) {
	out := "annotated:" + string(jpeg)
	for _, l := range labels {
		out += "|" + l.Text
	}
	return []byte(out), nil
}

type env struct {
	store    *storage.FileStorage
	cam      *MockCamera
	notifier *MockNotifier
	sup      *Supervisor
}

func newEnv(t *testing.T, cam *MockCamera, opts Options) *env {
	t.Helper()
	fs := newStore(t)
	detector := newDetector()
	e := &env{store: fs, cam: cam, notifier: &MockNotifier{}}
	e.sup = NewSupervisor(Deps{
		NewCamera:  func() Camera { return cam },
		Builder:    gallery.NewBuilder(MockLoader{}, detector),
		Identities: fs,
		Pipeline:   newPipeline(detector, fs, true),
		Annotate:   fakeAnnotate,
		Notifier:   e.notifier,
	}, opts)
	return e
}

func waitDone(t *testing.T, s *Supervisor) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
}

var errCameraGone = errors.New("device disconnected")
