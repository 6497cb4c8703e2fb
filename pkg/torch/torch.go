// Package torch drives the infrared illuminator that some IR camera modules
// expose next to their sensor.
package torch

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/irdrowsy/internal/log"
)

const (
	// MinPower and MaxPower bound the user-facing power scale.
	MinPower = 0
	MaxPower = 100

	// DefaultPower is used until the user picks a level.
	DefaultPower = 50
)

// Device is the hardware side of a torch. A session hands one out only when the
// opened source actually has an illuminator control.
type Device interface {
	// SetEnabled switches the illuminator on or off.
	SetEnabled(on bool) error

	// PowerAdjustable reports whether SetPower has any effect.
	PowerAdjustable() bool

	// SetPower sets the level on the 0-100 scale.
	SetPower(power int) error
}

// Capability describes what a device supports.
type Capability struct {
	Supported       bool `json:"supported"`
	PowerAdjustable bool `json:"power_adjustable"`
}

// State is the last successfully applied torch state.
type State struct {
	Enabled bool `json:"enabled"`
	Power   int  `json:"power"`
}

// Result is returned by a successful Set.
type Result struct {
	State       State  `json:"state"`
	Description string `json:"description"`
}

// Query reports the capability of dev. A nil device is unsupported.
func Query(dev Device) Capability {
	if dev == nil {
		return Capability{}
	}
	return Capability{Supported: true, PowerAdjustable: dev.PowerAdjustable()}
}

// ClampPower pins power into [MinPower, MaxPower].
func ClampPower(power int) int {
	if power < MinPower {
		return MinPower
	}
	if power > MaxPower {
		return MaxPower
	}
	return power
}

// Controller applies torch settings to a device.
type Controller struct {
	logger *slog.Logger
}

// NewController creates a controller. A nil logger uses the process logger.
func NewController(logger *slog.Logger) *Controller {
	logger = log.Or(logger)
	return &Controller{logger: logger}
}

// Set enables or disables the torch and, when enabling with a non-nil power,
// sets its level first. Power is ignored when disabling. Power outside 0-100 is
// clamped. When the device cannot adjust power the enable
// is still applied and the description says so.
func (c *Controller) Set(dev Device, enable bool, power *int) (Result, error) {
	if dev == nil {
		return Result{}, &UnsupportedError{Reason: ReasonNoTorch}
	}

	state := State{Enabled: enable}
	note := ""

	if enable && power != nil {
		p := ClampPower(*power)
		if p != *power {
			c.logger.Debug("torch power clamped", "requested", *power, "applied", p)
		}
		state.Power = p
		if dev.PowerAdjustable() {
			if err := dev.SetPower(p); err != nil {
				return Result{}, &OperationError{Op: "set power", Err: err}
			}
		} else {
			note = "power adjustment not supported"
		}
	}

	if err := dev.SetEnabled(enable); err != nil {
		return Result{}, &OperationError{Op: "set enabled", Err: err}
	}

	desc := fmt.Sprintf("torch.enabled=%t", enable)
	if enable && power != nil && note == "" {
		desc += fmt.Sprintf(", power=%d", state.Power)
	}
	if note != "" {
		desc += ", " + note
	}

	c.logger.Info("torch applied", "enabled", enable, "power", state.Power, "note", note)
	return Result{State: state, Description: desc}, nil
}
