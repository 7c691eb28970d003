// Package camera provides camera access and frame capture.
// Devices are opened through OpenCV (gocv); a device string that is a plain
// integer selects a local camera index, anything else is a file path or
// stream URL.
package camera

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"gocv.io/x/gocv"
)

// Frame represents a single camera frame encoded as JPEG.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    string // always "JPEG" after normalization
	Timestamp time.Time
	Seq       uint64
}

// DeviceInfo contains information about an open capture source.
type DeviceInfo struct {
	Device string  `json:"device"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
	IsFile bool    `json:"is_file"`
}

// ErrCameraNotFound is returned when the camera device cannot be opened.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// ErrUnsupportedFormat is returned for frames with an unexpected channel layout.
var ErrUnsupportedFormat = errors.New("unsupported frame format")

// Options are applied when the device is opened.
type Options struct {
	Width  int
	Height int
	FPS    int
	FourCC string
}

// VideoCamera captures from a gocv.VideoCapture.
type VideoCamera struct {
	opts   Options
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	info   DeviceInfo
	seq    uint64
	isOpen bool
}

// NewVideoCamera creates an unopened camera.
func NewVideoCamera(opts Options) *VideoCamera {
	return &VideoCamera{opts: opts}
}

// ParseDevice returns the camera index for numeric device strings.
// For anything else ok is false and the string is used as a path or URL.
func ParseDevice(device string) (index int, ok bool) {
	n, err := strconv.Atoi(device)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Open opens the device and applies the configured capture options.
func (c *VideoCamera) Open(device string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isOpen {
		return nil
	}

	var (
		vc     *gocv.VideoCapture
		err    error
		isFile bool
	)
	if idx, ok := ParseDevice(device); ok {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		if _, statErr := os.Stat(device); statErr == nil {
			isFile = true
		}
		vc, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCameraNotFound, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: %s", ErrCameraNotFound, device)
	}

	if !isFile {
		if c.opts.FourCC != "" {
			vc.Set(gocv.VideoCaptureFOURCC, vc.ToCodec(c.opts.FourCC))
		}
		if c.opts.FPS > 0 {
			vc.Set(gocv.VideoCaptureFPS, float64(c.opts.FPS))
		}
		if c.opts.Width > 0 && c.opts.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
			vc.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
		}
	}

	c.vc = vc
	c.mat = gocv.NewMat()
	c.seq = 0
	c.isOpen = true
	c.info = DeviceInfo{
		Device: device,
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    vc.Get(gocv.VideoCaptureFPS),
		IsFile: isFile,
	}

	logging.Component("camera").WithFields(logging.Fields{
		"device": device,
		"width":  c.info.Width,
		"height": c.info.Height,
		"fps":    c.info.FPS,
	}).Info("Capture device opened")
	return nil
}

// ReadFrame grabs one frame and returns it as JPEG. When the source is a
// video file, the end of the stream is reported as io.EOF.
func (c *VideoCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isOpen {
		return nil, ErrCameraNotOpen
	}

	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		if c.info.IsFile {
			return nil, io.EOF
		}
		return nil, ErrNoFrame
	}

	data, err := EncodeJPEG(c.mat)
	if err != nil {
		return nil, err
	}

	c.seq++
	return &Frame{
		Data:      data,
		Width:     c.mat.Cols(),
		Height:    c.mat.Rows(),
		Format:    "JPEG",
		Timestamp: time.Now(),
		Seq:       c.seq,
	}, nil
}

// EncodeJPEG converts a gray, BGR or BGRA frame to 3-channel BGR and encodes it.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	src := mat
	switch mat.Channels() {
	case 3:
	case 1, 4:
		bgr := gocv.NewMat()
		defer bgr.Close()
		code := gocv.ColorGrayToBGR
		if mat.Channels() == 4 {
			code = gocv.ColorBGRAToBGR
		}
		gocv.CvtColor(mat, &bgr, code)
		src = bgr
	default:
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, mat.Channels())
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, src)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// GetDeviceInfo returns information about the open source.
func (c *VideoCamera) GetDeviceInfo() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Close releases the device. Calling it more than once is safe.
func (c *VideoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isOpen {
		return nil
	}
	c.isOpen = false
	c.mat.Close()
	err := c.vc.Close()
	c.vc = nil

	logging.Component("camera").WithField("device", c.info.Device).Info("Capture device released")
	return err
}
