// Package debug provides global switches for very chatty diagnostics
package debug

import "github.com/teslashibe/irdrowsy/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls per-frame tracing (every acquired frame, every EAR value).
// Use --debug-frames to enable; at 30 FPS this is a lot of output.
var Frames bool

// Log emits a debug record only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// FrameLog emits a debug record only if frame tracing is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Debug(msg, args...)
	}
}
