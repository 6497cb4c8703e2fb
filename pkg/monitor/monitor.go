// Package monitor ties capture, settings, torch and presentation together
// behind the handful of operations a user interface needs.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/capture"
	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/present"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

// Status is the full state shown by user interfaces.
type Status struct {
	State    capture.State    `json:"state"`
	Session  capture.Info     `json:"session"`
	Stats    capture.Stats    `json:"stats"`
	Settings control.Settings `json:"settings"`
	Torch    TorchStatus      `json:"torch"`
	Frame    present.Status   `json:"frame"`
	Message  string           `json:"message"`
	Time     time.Time        `json:"time"`
}

// TorchStatus combines capability and the last applied state.
type TorchStatus struct {
	torch.Capability
	Applied     *torch.State `json:"applied,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Sink receives status updates, e.g. to push them over a websocket.
type Sink interface {
	PublishStatus(s Status)
}

// Monitor owns the capture loop and the presenter.
type Monitor struct {
	loop        *capture.Loop
	settings    *control.Manager
	presenter   *present.Presenter
	snapshotDir string
	logger      *slog.Logger

	mu        sync.Mutex
	message   string
	torchRes  *torch.Result
	sink      Sink
	lastFrame present.Status
}

// New wires the components together. It installs itself as the settings
// change hook and the presenter's state updater.
func New(loop *capture.Loop, settings *control.Manager, presenter *present.Presenter, snapshotDir string, logger *slog.Logger) *Monitor {
	logger = log.Or(logger)
	m := &Monitor{
		loop:        loop,
		settings:    settings,
		presenter:   presenter,
		snapshotDir: snapshotDir,
		logger:      logger,
		message:     "idle",
	}
	settings.OnChange = m.onSettingsChange
	presenter.SetStateUpdater(m)
	return m
}

// SetSink sets the status listener.
func (m *Monitor) SetSink(s Sink) {
	m.mu.Lock()
	m.sink = s
	m.mu.Unlock()
}

// Start opens the infrared camera and re-applies the torch settings.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.loop.Start(ctx); err != nil {
		m.note(fmt.Sprintf("start failed: %v", err))
		return err
	}

	info := m.loop.Info()
	m.mu.Lock()
	m.torchRes = nil
	m.mu.Unlock()
	m.note(fmt.Sprintf("capture started: %s", info.Source.Name))

	// Torch problems never fail a start.
	if _, err := m.applyTorch(m.settings.Get()); err != nil {
		m.logger.Info("torch not applied after start", "error", err)
	}
	return nil
}

// Stop closes the camera and clears the displayed frame.
func (m *Monitor) Stop(ctx context.Context) error {
	err := m.loop.Stop(ctx)
	m.presenter.Reset()

	m.mu.Lock()
	m.torchRes = nil
	m.lastFrame = present.Status{}
	m.mu.Unlock()

	if err != nil {
		m.note(fmt.Sprintf("stop: %v", err))
		return err
	}
	m.note("capture stopped")
	return nil
}

// Settings returns the current parameters.
func (m *Monitor) Settings() control.Settings {
	return m.settings.Get()
}

// UpdateSettings changes individual parameters.
func (m *Monitor) UpdateSettings(params map[string]interface{}) error {
	return m.settings.Update(params)
}

// ReplaceSettings stores a complete parameter set.
func (m *Monitor) ReplaceSettings(s control.Settings) error {
	return m.settings.Set(s)
}

// ApplyPreset switches to a named parameter preset.
func (m *Monitor) ApplyPreset(name string) error {
	return m.settings.ApplyPreset(name)
}

// SetTorch stores the torch settings and applies them to the open session.
// Power is clamped to 0-100. Without a session the settings are kept for the
// next start and a *torch.UnsupportedError is returned.
func (m *Monitor) SetTorch(enable bool, power int) (torch.Result, error) {
	s := m.settings.Get()
	s.TorchEnabled = enable
	s.TorchPower = torch.ClampPower(power)

	err := m.settings.Set(s)
	if m.loop.State() != capture.StateRunning {
		return torch.Result{}, &torch.UnsupportedError{Reason: torch.ReasonNotInitialized}
	}
	if err != nil {
		return torch.Result{}, err
	}

	m.mu.Lock()
	last := m.torchRes
	m.mu.Unlock()
	want := torch.State{Enabled: s.TorchEnabled}
	if s.TorchEnabled {
		want.Power = s.TorchPower
	}
	if last != nil && last.State == want {
		return *last, nil
	}
	// Unchanged settings skip the change hook; apply them here.
	return m.applyTorch(s)
}

// Snapshot saves the displayed frame and returns the file path.
func (m *Monitor) Snapshot() (string, error) {
	path, err := m.presenter.Save(m.snapshotDir)
	if err != nil {
		if errors.Is(err, present.ErrNothingToSave) {
			m.note("nothing to save")
		} else {
			m.note(fmt.Sprintf("save failed: %v", err))
		}
		return "", err
	}
	m.note(fmt.Sprintf("saved: %s", path))
	return path, nil
}

// Status returns the current state.
func (m *Monitor) Status() Status {
	st := Status{
		State:    m.loop.State(),
		Session:  m.loop.Info(),
		Stats:    m.loop.Stats(),
		Settings: m.settings.Get(),
		Torch:    TorchStatus{Capability: m.loop.TorchCapability()},
		Time:     time.Now(),
	}

	m.mu.Lock()
	st.Message = m.message
	st.Frame = m.lastFrame
	if m.torchRes != nil {
		applied := m.torchRes.State
		st.Torch.Applied = &applied
		st.Torch.Description = m.torchRes.Description
	}
	m.mu.Unlock()
	return st
}

// UpdateStatus implements present.StateUpdater.
func (m *Monitor) UpdateStatus(s present.Status) {
	m.mu.Lock()
	changed := s.Alert != m.lastFrame.Alert || s.HasFace != m.lastFrame.HasFace
	m.lastFrame = s
	m.mu.Unlock()

	if changed && s.Alert {
		m.logger.Warn("drowsiness detected", "ear", s.EAR, "threshold", s.Threshold, "frame", s.FrameSeq)
	}
	m.publish()
}

func (m *Monitor) onSettingsChange(prev, next control.Settings) error {
	m.logger.Info("settings changed",
		"detection", next.DetectionEnabled,
		"ear_threshold", next.EARThreshold,
		"torch", next.TorchEnabled,
		"torch_power", next.TorchPower,
	)
	defer m.publish()

	if !prev.TorchChanged(next) || m.loop.State() != capture.StateRunning {
		return nil
	}
	_, err := m.applyTorch(next)
	return err
}

func (m *Monitor) applyTorch(s control.Settings) (torch.Result, error) {
	power := s.TorchPower
	res, err := m.loop.SetTorch(s.TorchEnabled, &power)
	if err != nil {
		m.note(err.Error())
		return torch.Result{}, err
	}

	m.mu.Lock()
	m.torchRes = &res
	m.mu.Unlock()
	m.note(res.Description)
	return res, nil
}

// note records the status line shown to the user.
func (m *Monitor) note(msg string) {
	m.mu.Lock()
	m.message = msg
	m.mu.Unlock()
	m.logger.Info(msg)
	m.publish()
}

func (m *Monitor) publish() {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.PublishStatus(m.Status())
	}
}
