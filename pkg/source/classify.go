package source

import (
	"regexp"
	"strings"
)

var (
	irNamePattern = regexp.MustCompile(`(?i)\b(ir|infrared)\b`)

	colorFourCCs = map[string]bool{
		"YUYV": true, "UYVY": true, "MJPG": true, "JPEG": true, "H264": true,
		"NV12": true, "YU12": true, "RGB3": true, "BGR3": true, "BGR4": true,
		"XR24": true, "AR24": true, "XB24": true, "AB24": true, "RGBP": true,
	}
	monoFourCCs = map[string]bool{
		"GREY": true, "Y800": true, "Y10 ": true, "Y12 ": true, "Y16 ": true,
	}
	depthFourCCs = map[string]bool{
		"Z16 ": true, "INZI": true,
	}
)

// Classify derives Kind and Role for a capture node from its card name and the
// fourcc codes it offers. A node without formats cannot stream and is treated
// as metadata.
func Classify(name string, formats []string) (Kind, Role) {
	if len(formats) == 0 {
		return KindUnknown, RoleMetadata
	}

	var color, mono, depth bool
	for _, f := range formats {
		f = padFourCC(f)
		switch {
		case colorFourCCs[f]:
			color = true
		case monoFourCCs[f]:
			mono = true
		case depthFourCCs[f]:
			depth = true
		}
	}

	switch {
	case depth && !color && !mono:
		return KindDepth, RolePreview
	case irNamePattern.MatchString(name):
		return KindInfrared, RolePreview
	case mono && !color:
		return KindInfrared, RolePreview
	case color:
		return KindColor, RolePreview
	default:
		return KindUnknown, RolePreview
	}
}

func padFourCC(f string) string {
	f = strings.ToUpper(f)
	for len(f) < 4 {
		f += " "
	}
	return f
}
