package source

import "fmt"

// Backend selects the platform implementation.
type Backend string

const (
	// BackendAuto picks V4L2 on Linux and the mock elsewhere.
	BackendAuto Backend = "auto"
	// BackendV4L2 uses Video4Linux2 devices.
	BackendV4L2 Backend = "v4l2"
	// BackendMock uses an in-memory source.
	BackendMock Backend = "mock"
)

// Config holds frame source configuration.
type Config struct {
	// Backend specifies which backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// Device restricts enumeration to one node, e.g. "/dev/video2". The node
	// is treated as infrared regardless of what it reports.
	Device string `yaml:"device" json:"device"`

	// Width and Height request a frame size. Zero picks the largest size the
	// device offers for the negotiated format.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// BufferCount is the number of driver buffers. Zero keeps the driver default.
	BufferCount int `yaml:"buffer_count" json:"buffer_count"`

	// MockFPS makes mock sessions synthesize frames at this rate. Zero means
	// frames only arrive through Push.
	MockFPS int `yaml:"mock_fps" json:"mock_fps"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendAuto,
		BufferCount: 4,
		MockFPS:     30,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendV4L2, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("frame size must not be negative, got %dx%d", c.Width, c.Height)
	}
	if (c.Width == 0) != (c.Height == 0) {
		return fmt.Errorf("width and height must be set together, got %dx%d", c.Width, c.Height)
	}
	if c.BufferCount < 0 {
		return fmt.Errorf("buffer_count must not be negative, got %d", c.BufferCount)
	}
	if c.MockFPS < 0 || c.MockFPS > 240 {
		return fmt.Errorf("mock_fps must be 0-240, got %d", c.MockFPS)
	}
	return nil
}
