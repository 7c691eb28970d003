// Package media loads reference and uploaded pictures, draws detection
// overlays and manages the files under the media directory.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used whenever an image is re-encoded for detection.
const JPEGQuality = 92

// ErrEmptyImage is returned for zero-length image data.
var ErrEmptyImage = errors.New("empty image data")

// ImageLoadError reports a picture that could not be read or decoded.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image load failed: %v", e.Err)
	}
	return fmt.Sprintf("image load failed for %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// Loader reads pictures and hands them to the detector as 3-channel JPEG.
type Loader struct {
	// Root is the directory relative picture paths are resolved against.
	Root string
	// MaxDimension downsizes larger pictures before detection. Zero disables it.
	MaxDimension int
}

// NewLoader creates a Loader rooted at root.
func NewLoader(root string) *Loader {
	return &Loader{Root: root, MaxDimension: 1600}
}

// Resolve maps a stored picture reference to a filesystem path.
// References may be percent-encoded. A leading slash is tried as an absolute
// path first and otherwise taken relative to Root.
func (l *Loader) Resolve(ref string) string {
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	if filepath.IsAbs(ref) {
		if _, err := os.Stat(ref); err == nil || l.Root == "" {
			return filepath.Clean(ref)
		}
	}
	return filepath.Join(l.Root, filepath.Clean(strings.TrimPrefix(ref, "/")))
}

// Load opens the picture at ref, applies EXIF orientation and returns JPEG bytes.
func (l *Loader) Load(ref string) ([]byte, error) {
	path := l.Resolve(ref)
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	data, err := l.encode(img)
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	return data, nil
}

// Normalize decodes uploaded image bytes of any registered format and
// returns them as JPEG.
func (l *Loader) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &ImageLoadError{Err: ErrEmptyImage}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageLoadError{Err: err}
	}
	out, err := l.encode(img)
	if err != nil {
		return nil, &ImageLoadError{Err: err}
	}
	return out, nil
}

func (l *Loader) encode(img image.Image) ([]byte, error) {
	if l.MaxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > l.MaxDimension || b.Dy() > l.MaxDimension {
			img = imaging.Fit(img, l.MaxDimension, l.MaxDimension, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
