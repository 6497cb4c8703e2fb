// Package control holds the parameters a user can change while the monitor
// runs. They are read on every presentation tick, never cached.
package control

import "github.com/teslashibe/irdrowsy/pkg/torch"

// Settings holds all runtime-tunable parameters.
// These can be modified via the control API at runtime.
type Settings struct {
	// DetectionEnabled runs the drowsiness estimator on each displayed frame.
	// When false the plain frame is shown.
	DetectionEnabled bool `json:"detection_enabled" yaml:"detection_enabled"`

	// EARThreshold is the eye aspect ratio below which the driver is
	// considered drowsy (0.10 to 0.40).
	EARThreshold float64 `json:"ear_threshold" yaml:"ear_threshold"`

	// TorchEnabled switches the infrared illuminator.
	TorchEnabled bool `json:"torch_enabled" yaml:"torch_enabled"`

	// TorchPower is the illuminator level (0 to 100).
	TorchPower int `json:"torch_power" yaml:"torch_power"`
}

// Threshold limits.
const (
	MinThreshold     = 0.10
	MaxThreshold     = 0.40
	DefaultThreshold = 0.22
)

// DefaultSettings returns the startup parameters.
func DefaultSettings() Settings {
	return Settings{
		DetectionEnabled: true,
		EARThreshold:     DefaultThreshold,
		TorchEnabled:     false,
		TorchPower:       torch.DefaultPower,
	}
}

// Validate checks if the values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (s *Settings) Validate() []string {
	var errors []string

	if s.EARThreshold < MinThreshold || s.EARThreshold > MaxThreshold {
		errors = append(errors, "ear_threshold must be between 0.10 and 0.40")
	}
	if s.TorchPower < torch.MinPower || s.TorchPower > torch.MaxPower {
		errors = append(errors, "torch_power must be between 0 and 100")
	}

	return errors
}

// TorchChanged reports whether applying next over s needs a torch update.
func (s Settings) TorchChanged(next Settings) bool {
	return s.TorchEnabled != next.TorchEnabled || s.TorchPower != next.TorchPower
}
