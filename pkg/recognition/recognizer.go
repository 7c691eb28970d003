// Package recognition provides face detection and encoding.
// It uses dlib/go-face for detection, landmark extraction and 128-d descriptors,
// and exposes the distance and match test the rest of crimeapp compares with.
package recognition

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
)

// DefaultTolerance is the maximum distance at which two encodings are
// considered the same person.
const DefaultTolerance = 0.6

// Descriptor is a 128-dimensional face encoding from dlib.
type Descriptor = face.Descriptor

// Box is a face bounding box in pixel coordinates of the source image.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// BoxFromRect converts an image rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// Rect returns the box as an image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Face is a detected face.
type Face struct {
	Box        Box
	Descriptor Descriptor
}

// FaceEngine is the detector/encoder backend. *face.Recognizer satisfies it.
type FaceEngine interface {
	Recognize(imgData []byte) ([]face.Face, error)
	Close()
}

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// ErrEncodingFailed is returned when a detected face has no usable encoding.
var ErrEncodingFailed = errors.New("face encoding failed")

// DlibRecognizer implements face recognition using dlib via go-face.
type DlibRecognizer struct {
	engine    FaceEngine
	factory   func(modelPath string) (FaceEngine, error)
	modelPath string
	loaded    bool
	mu        sync.RWMutex
	tolerance float64
}

// NewRecognizer creates a new DlibRecognizer instance.
func NewRecognizer() *DlibRecognizer {
	return &DlibRecognizer{
		factory:   newDlibEngine,
		tolerance: DefaultTolerance,
	}
}

func newDlibEngine(modelPath string) (FaceEngine, error) {
	rec, err := face.NewRecognizer(modelPath)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SetTolerance sets the tolerance for face matching.
// Lower values are more strict (fewer false positives).
func (r *DlibRecognizer) SetTolerance(tolerance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tolerance = tolerance
}

// Tolerance returns the current match tolerance.
func (r *DlibRecognizer) Tolerance() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tolerance
}

// LoadModels loads the dlib face recognition models from the specified path.
// The path should contain:
// - shape_predictor_5_face_landmarks.dat
// - dlib_face_recognition_resnet_model_v1.dat
// - mmod_human_face_detector.dat
func (r *DlibRecognizer) LoadModels(modelPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	engine, err := r.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	r.engine = engine
	r.modelPath = modelPath
	r.loaded = true

	logging.Info("Face recognition models loaded successfully")
	return nil
}

// IsLoaded returns true if models are loaded.
func (r *DlibRecognizer) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Close releases the recognizer resources.
func (r *DlibRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		r.engine.Close()
		r.engine = nil
	}
	r.loaded = false
	return nil
}

// DetectFaces detects all faces in a JPEG image, in detector order.
func (r *DlibRecognizer) DetectFaces(imageData []byte) ([]Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, ErrModelNotLoaded
	}

	faces, err := r.engine.Recognize(imageData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	result := make([]Face, len(faces))
	for i, f := range faces {
		result[i] = Face{
			Box:        BoxFromRect(f.Rectangle),
			Descriptor: f.Descriptor,
		}
	}

	logging.Debugf("Detected %d face(s) in image", len(result))
	return result, nil
}

// Encoding returns the usable encoding of a detected face.
// An all-zero or non-finite descriptor yields ErrEncodingFailed.
func (r *DlibRecognizer) Encoding(f Face) (Descriptor, error) {
	return ValidateDescriptor(f.Descriptor)
}

// ValidateDescriptor rejects descriptors the encoder could not fill.
func ValidateDescriptor(d Descriptor) (Descriptor, error) {
	nonZero := false
	for i, v := range d {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Descriptor{}, fmt.Errorf("%w: component %d is not finite", ErrEncodingFailed, i)
		}
		if v != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return Descriptor{}, fmt.Errorf("%w: empty descriptor", ErrEncodingFailed)
	}
	return d, nil
}

// Distance returns the Euclidean distance between two encodings.
func (r *DlibRecognizer) Distance(a, b Descriptor) float64 {
	return EuclideanDistance(a, b)
}

// IsMatch reports whether two encodings are within tolerance of each other.
// A distance exactly equal to the tolerance matches.
func (r *DlibRecognizer) IsMatch(a, b Descriptor) bool {
	r.mu.RLock()
	tolerance := r.tolerance
	r.mu.RUnlock()

	return EuclideanDistance(a, b) <= tolerance
}

// EuclideanDistance calculates the Euclidean distance between two descriptors.
func EuclideanDistance(d1, d2 Descriptor) float64 {
	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
