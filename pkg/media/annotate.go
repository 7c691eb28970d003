package media

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	boxColor       = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	highlightColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	textColor      = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

const (
	captionFont  = gocv.FontHersheyDuplex
	captionScale = 0.5
	captionPad   = 6
)

// Label is one face overlay: a box with a caption strip along its bottom edge.
type Label struct {
	Rect image.Rectangle
	Text string
	// Highlight marks a face that resolved to a Wanted identity.
	Highlight bool
}

// Annotate draws labels onto a JPEG image and returns the re-encoded JPEG.
func Annotate(jpeg []byte, labels []Label) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, &ImageLoadError{Err: err}
	}
	defer img.Close()
	if img.Empty() {
		return nil, &ImageLoadError{Err: ErrEmptyImage}
	}

	DrawLabels(&img, labels)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// DrawLabels draws labels in place on a BGR frame.
func DrawLabels(img *gocv.Mat, labels []Label) {
	for _, l := range labels {
		c := boxColor
		if l.Highlight {
			c = highlightColor
		}
		gocv.Rectangle(img, l.Rect, c, 2)

		if l.Text == "" {
			continue
		}
		size := gocv.GetTextSize(l.Text, captionFont, captionScale, 1)
		strip := image.Rect(l.Rect.Min.X, l.Rect.Max.Y-size.Y-2*captionPad, l.Rect.Max.X, l.Rect.Max.Y)
		gocv.Rectangle(img, strip, c, -1)
		gocv.PutText(img, l.Text, image.Pt(l.Rect.Min.X+captionPad, l.Rect.Max.Y-captionPad), captionFont, captionScale, textColor, 1)
	}
}
