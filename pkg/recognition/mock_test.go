package recognition

import (
	"github.com/Kagami/go-face"
)

type MockFaceEngine struct {
	RecognizeFunc func(data []byte) ([]face.Face, error)
	CloseFunc     func()
	calls         int
}

func (m *MockFaceEngine) Recognize(data []byte) ([]face.Face, error) {
	m.calls++
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(data)
	}
	return nil, nil
}

func (m *MockFaceEngine) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

func loadedWith(engine *MockFaceEngine) *DlibRecognizer {
	r := NewRecognizer()
	r.factory = func(path string) (FaceEngine, error) {
		return engine, nil
	}
	_ = r.LoadModels("dummy")
	return r
}
