package camera

import (
	"bytes"
	"errors"
	"image/jpeg"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		device  string
		wantIdx int
		wantOK  bool
	}{
		{"0", 0, true},
		{"2", 2, true},
		{"-1", 0, false},
		{"/dev/video0", 0, false},
		{"rtsp://cam.local/stream", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			idx, ok := ParseDevice(tt.device)
			if ok != tt.wantOK || idx != tt.wantIdx {
				t.Errorf("ParseDevice(%q) = (%d, %v), want (%d, %v)", tt.device, idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestReadFrame_NotOpen(t *testing.T) {
	c := NewVideoCamera(Options{})
	if _, err := c.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := NewVideoCamera(Options{})
	if err := c.Close(); err != nil {
		t.Errorf("Close on unopened camera failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	c := NewVideoCamera(Options{})
	err := c.Open(filepath.Join(t.TempDir(), "missing.avi"))
	if !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound, got %v", err)
	}
	if _, err := c.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("failed open must leave camera closed, got %v", err)
	}
	if info := c.GetDeviceInfo(); info != (DeviceInfo{}) {
		t.Errorf("failed open must not report a device, got %+v", info)
	}
}

func TestEncodeJPEG_Channels(t *testing.T) {
	tests := []struct {
		name string
		typ  gocv.MatType
	}{
		{"gray", gocv.MatTypeCV8UC1},
		{"bgr", gocv.MatTypeCV8UC3},
		{"bgra", gocv.MatTypeCV8UC4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mat := gocv.NewMatWithSize(24, 32, tt.typ)
			defer mat.Close()

			data, err := EncodeJPEG(mat)
			if err != nil {
				t.Fatalf("EncodeJPEG failed: %v", err)
			}
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("not a JPEG: %v", err)
			}
			if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
				t.Errorf("unexpected size %v", img.Bounds())
			}
		})
	}
}

func TestEncodeJPEG_Unsupported(t *testing.T) {
	mat := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC2)
	defer mat.Close()

	if _, err := EncodeJPEG(mat); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
