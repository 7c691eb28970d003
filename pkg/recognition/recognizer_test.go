package recognition

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/Kagami/go-face"
)

func TestNewRecognizer(t *testing.T) {
	rec := NewRecognizer()
	if rec == nil {
		t.Fatal("NewRecognizer returned nil")
	}
	if rec.Tolerance() != DefaultTolerance {
		t.Errorf("expected default tolerance %f, got %f", DefaultTolerance, rec.Tolerance())
	}
	if rec.IsLoaded() {
		t.Error("expected IsLoaded to be false initially")
	}
}

func TestSetTolerance(t *testing.T) {
	rec := NewRecognizer()
	rec.SetTolerance(0.45)
	if rec.Tolerance() != 0.45 {
		t.Errorf("expected tolerance 0.45, got %f", rec.Tolerance())
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		d1       Descriptor
		d2       Descriptor
		expected float64
	}{
		{
			name:     "identical",
			d1:       Descriptor{1, 2, 3},
			d2:       Descriptor{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "different",
			d1:       Descriptor{1, 2, 3},
			d2:       Descriptor{4, 6, 8},
			expected: math.Sqrt(50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := EuclideanDistance(tt.d1, tt.d2)
			if math.Abs(dist-tt.expected) > 1e-4 {
				t.Errorf("expected %f, got %f", tt.expected, dist)
			}
			if back := EuclideanDistance(tt.d2, tt.d1); math.Abs(back-dist) > 1e-9 {
				t.Errorf("distance is not symmetric: %f vs %f", dist, back)
			}
		})
	}
}

func TestIsMatch(t *testing.T) {
	rec := NewRecognizer()
	rec.SetTolerance(0.5)

	base := Descriptor{1, 0, 0}
	tests := []struct {
		name  string
		other Descriptor
		want  bool
	}{
		{"close", Descriptor{1.1, 0, 0}, true},
		{"exactly at tolerance", Descriptor{1.5, 0, 0}, true},
		{"far", Descriptor{10, 20, 30}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.IsMatch(base, tt.other); got != tt.want {
				t.Errorf("IsMatch = %v, want %v (distance %f)", got, tt.want, rec.Distance(base, tt.other))
			}
		})
	}
}

func TestLoadModels(t *testing.T) {
	r := NewRecognizer()
	calls := 0
	r.factory = func(path string) (FaceEngine, error) {
		calls++
		return &MockFaceEngine{}, nil
	}

	if err := r.LoadModels("/tmp/models"); err != nil {
		t.Errorf("LoadModels failed: %v", err)
	}
	if !r.IsLoaded() {
		t.Error("Expected loaded to be true")
	}

	// Second load is a no-op
	if err := r.LoadModels("/tmp/models"); err != nil {
		t.Errorf("LoadModels failed on second call: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
}

func TestLoadModels_Failure(t *testing.T) {
	r := NewRecognizer()
	r.factory = func(path string) (FaceEngine, error) {
		return nil, errors.New("load failed")
	}

	if err := r.LoadModels("/tmp/models"); err == nil {
		t.Error("Expected LoadModels to fail")
	}
	if r.IsLoaded() {
		t.Error("Expected loaded to be false")
	}
}

func TestDetectFaces(t *testing.T) {
	r := loadedWith(&MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{
				{Rectangle: image.Rect(10, 20, 110, 140), Descriptor: face.Descriptor{1, 2, 3}},
				{Rectangle: image.Rect(200, 20, 260, 90), Descriptor: face.Descriptor{4, 5, 6}},
			}, nil
		},
	})

	faces, err := r.DetectFaces([]byte("image"))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	want := Box{Top: 20, Right: 110, Bottom: 140, Left: 10}
	if faces[0].Box != want {
		t.Errorf("Expected box %+v, got %+v", want, faces[0].Box)
	}
	if faces[1].Descriptor[0] != 4 {
		t.Error("faces should keep detector order")
	}
	if faces[0].Box.Rect() != image.Rect(10, 20, 110, 140) {
		t.Errorf("Rect round trip failed: %v", faces[0].Box.Rect())
	}
}

func TestDetectFaces_NotLoaded(t *testing.T) {
	r := NewRecognizer()
	_, err := r.DetectFaces([]byte("image"))
	if err != ErrModelNotLoaded {
		t.Errorf("Expected ErrModelNotLoaded, got %v", err)
	}
}

func TestDetectFaces_NoFace(t *testing.T) {
	r := loadedWith(&MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{}, nil
		},
	})

	_, err := r.DetectFaces([]byte("image"))
	if err != ErrNoFaceDetected {
		t.Errorf("Expected ErrNoFaceDetected, got %v", err)
	}
}

func TestDetectFaces_Error(t *testing.T) {
	engineErr := errors.New("engine error")
	r := loadedWith(&MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return nil, engineErr
		},
	})

	_, err := r.DetectFaces([]byte("image"))
	if !errors.Is(err, engineErr) {
		t.Errorf("Expected wrapped engine error, got %v", err)
	}
}

func TestEncoding(t *testing.T) {
	r := NewRecognizer()

	var nan Descriptor
	nan[5] = float32(math.NaN())
	var inf Descriptor
	inf[0] = float32(math.Inf(1))

	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{"valid", Descriptor{0.1, -0.2, 0.3}, false},
		{"all zero", Descriptor{}, true},
		{"nan", nan, true},
		{"inf", inf, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Encoding(Face{Descriptor: tt.desc})
			if tt.wantErr {
				if !errors.Is(err, ErrEncodingFailed) {
					t.Errorf("expected ErrEncodingFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.desc {
				t.Error("encoding should be the face descriptor")
			}
		})
	}
}

func TestClose(t *testing.T) {
	closed := false
	r := loadedWith(&MockFaceEngine{
		CloseFunc: func() { closed = true },
	})

	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !closed {
		t.Error("Expected engine to be closed")
	}
	if r.IsLoaded() {
		t.Error("Expected loaded to be false")
	}
}
