package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/irdrowsy/pkg/frame"
)

// Format is a raw pixel layout this package knows how to decode.
type Format int

const (
	FormatUnknown Format = iota
	// FormatGray8 is one byte of intensity per pixel.
	FormatGray8
	// FormatBGRA32 is B, G, R, X/A in memory order.
	FormatBGRA32
	// FormatRGBA32 is R, G, B, X/A in memory order.
	FormatRGBA32
)

func (f Format) String() string {
	switch f {
	case FormatGray8:
		return "GREY"
	case FormatBGRA32:
		return "BGRA32"
	case FormatRGBA32:
		return "RGBA32"
	default:
		return "unknown"
	}
}

// FormatFromFourCC maps a V4L2 fourcc to a decodable format.
func FormatFromFourCC(fourcc string) Format {
	switch strings.TrimSpace(fourcc) {
	case "GREY", "Y800":
		return FormatGray8
	case "BGR4", "XR24", "AR24", "BA24":
		return FormatBGRA32
	case "XB24", "AB24", "RA24":
		return FormatRGBA32
	default:
		return FormatUnknown
	}
}

// Fourccs in negotiation order: native intensity first, then 32-bit color.
var formatPreference = []string{"GREY", "Y800", "XR24", "AR24", "BGR4", "BA24", "XB24", "AB24", "RA24"}

var errNoDecodableFormat = errors.New("device offers neither 8-bit gray nor 32-bit color")

// formatCandidates returns the decodable fourccs among offered, most preferred
// first. Gray is always tried before color.
func formatCandidates(offered []string) ([]string, error) {
	have := make(map[string]bool, len(offered))
	for _, f := range offered {
		have[padFourCC(f)] = true
	}

	var out []string
	for _, code := range formatPreference {
		if have[code] {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil, errNoDecodableFormat
	}
	return out, nil
}

// Raw is one device buffer. Data is only valid until the buffer is released,
// so Decode copies it.
type Raw struct {
	Format Format
	Width  int
	Height int
	Stride int
	Data   []byte
}

var errEmptyBuffer = errors.New("empty buffer")

// Decode turns a device buffer into an intensity frame. Gray buffers are copied
// as-is; 32-bit color buffers go through a BT.601 luma conversion.
func Decode(raw Raw) (*frame.Gray, error) {
	if len(raw.Data) == 0 {
		return nil, &DecodeError{Format: raw.Format.String(), Err: errEmptyBuffer}
	}

	var (
		g   *frame.Gray
		err error
	)
	switch raw.Format {
	case FormatGray8:
		g, err = frame.FromGray8(raw.Width, raw.Height, raw.Stride, raw.Data)
	case FormatBGRA32:
		g, err = frame.FromBGRA(raw.Width, raw.Height, raw.Stride, raw.Data)
	case FormatRGBA32:
		g, err = frame.FromRGBA(raw.Width, raw.Height, raw.Stride, raw.Data)
	default:
		err = fmt.Errorf("unsupported pixel format")
	}
	if err != nil {
		return nil, &DecodeError{Format: raw.Format.String(), Err: err}
	}
	return g, nil
}
