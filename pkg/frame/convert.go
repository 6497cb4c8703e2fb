package frame

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// FromGray8 copies an 8-bit grayscale device buffer. stride may exceed width
// when the driver pads rows; the result is always tightly packed.
func FromGray8(width, height, stride int, data []byte) (*Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmpty
	}
	if stride < width {
		stride = width
	}
	if len(data) < stride*(height-1)+width {
		return nil, fmt.Errorf("frame: GREY buffer too short: %d bytes for %dx%d stride %d", len(data), width, height, stride)
	}

	g := NewGray(width, height)
	if stride == width {
		copy(g.Pix, data[:width*height])
	} else {
		for y := 0; y < height; y++ {
			copy(g.Pix[y*width:(y+1)*width], data[y*stride:y*stride+width])
		}
	}
	g.Captured = time.Now()
	return g, nil
}

// FromBGRA derives intensity from a 32-bit BGRA/BGRX device buffer using the
// BT.601 luma weights that OpenCV applies for COLOR_BGRA2GRAY.
func FromBGRA(width, height, stride int, data []byte) (*Gray, error) {
	return fromColor32(width, height, stride, data, gocv.ColorBGRAToGray)
}

// FromRGBA is FromBGRA for buffers with red in the first byte.
func FromRGBA(width, height, stride int, data []byte) (*Gray, error) {
	return fromColor32(width, height, stride, data, gocv.ColorRGBAToGray)
}

func fromColor32(width, height, stride int, data []byte, code gocv.ColorConversionCode) (*Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmpty
	}
	rowBytes := width * 4
	if stride < rowBytes {
		stride = rowBytes
	}
	if len(data) < stride*(height-1)+rowBytes {
		return nil, fmt.Errorf("frame: 32-bit buffer too short: %d bytes for %dx%d stride %d", len(data), width, height, stride)
	}

	packed := data[:rowBytes*height]
	if stride != rowBytes {
		packed = make([]byte, rowBytes*height)
		for y := 0; y < height; y++ {
			copy(packed[y*rowBytes:(y+1)*rowBytes], data[y*stride:y*stride+rowBytes])
		}
	}

	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, packed)
	if err != nil {
		return nil, fmt.Errorf("frame: wrap 32-bit buffer: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.CvtColor(src, &dst, code)

	pix, err := dst.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("frame: read luma: %w", err)
	}

	g := NewGray(width, height)
	copy(g.Pix, pix)
	g.Captured = time.Now()
	return g, nil
}
