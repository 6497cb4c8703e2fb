// Package frame holds the single-channel intensity frames that flow from the
// capture loop to the presentation side, and the latest-wins slot between them.
package frame

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrEmpty is returned when a conversion is asked to work on no pixels.
var ErrEmpty = errors.New("frame: empty frame")

// Gray is an 8-bit intensity image. Pix is row-major with stride == Width.
// A Gray is never modified after it has been stored in a Slot.
type Gray struct {
	Width  int
	Height int
	Pix    []byte

	// Seq is assigned by the source, monotonically increasing per session.
	Seq uint64

	// Captured is when the device delivered the frame.
	Captured time.Time
}

// NewGray allocates a black frame of the given size.
func NewGray(width, height int) *Gray {
	return &Gray{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height),
	}
}

// Validate checks that the pixel buffer matches the dimensions.
func (g *Gray) Validate() error {
	if g == nil || g.Width <= 0 || g.Height <= 0 {
		return ErrEmpty
	}
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("frame: %dx%d needs %d bytes, have %d", g.Width, g.Height, g.Width*g.Height, len(g.Pix))
	}
	return nil
}

// Bounds returns the image rectangle.
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// At returns the intensity at (x, y). Out-of-range reads return 0.
func (g *Gray) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.Pix[y*g.Width+x]
}

// Image wraps the pixels as an *image.Gray without copying.
func (g *Gray) Image() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   g.Bounds(),
	}
}

// Mat copies the frame into a single-channel gocv Mat. Caller closes it.
func (g *Gray) Mat() (gocv.Mat, error) {
	if err := g.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	return gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8UC1, g.Pix)
}

// BGR returns a 3-channel copy of the frame suitable for display and
// annotation. Caller closes it.
func (g *Gray) BGR() (gocv.Mat, error) {
	gray, err := g.Mat()
	if err != nil {
		gray.Close()
		return gocv.NewMat(), err
	}
	defer gray.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)
	return bgr, nil
}
