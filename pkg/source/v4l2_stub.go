//go:build !linux

package source

import (
	"fmt"
	"log/slog"
)

// newV4L2Adapter returns an error on non-Linux platforms.
func newV4L2Adapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	return nil, fmt.Errorf("V4L2 is only available on Linux")
}
