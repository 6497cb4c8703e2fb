package source

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/teslashibe/irdrowsy/internal/log"
)

// NewAdapter creates a frame source adapter with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger = log.Or(logger)

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating frame source adapter",
		"backend", backend,
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
	)

	switch backend {
	case BackendMock:
		return NewMockAdapter(cfg, logger), nil
	case BackendV4L2:
		return newV4L2Adapter(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for the current platform.
func detectBestBackend() Backend {
	if runtime.GOOS == "linux" {
		return BackendV4L2
	}
	return BackendMock
}

// AvailableBackends returns the list of backends available on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if runtime.GOOS == "linux" {
		backends = append(backends, BackendV4L2)
	}
	return backends
}
