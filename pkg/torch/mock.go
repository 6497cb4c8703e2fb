package torch

import "sync"

// MockDevice records calls for tests and the mock frame source.
type MockDevice struct {
	mu sync.Mutex

	Adjustable bool

	// EnableErr and PowerErr, when set, are returned by the next calls.
	EnableErr error
	PowerErr  error

	enabled bool
	power   int
	calls   int
}

// NewMockDevice creates a mock torch.
func NewMockDevice(adjustable bool) *MockDevice {
	return &MockDevice{Adjustable: adjustable}
}

// SetEnabled implements Device.
func (m *MockDevice) SetEnabled(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.EnableErr != nil {
		return m.EnableErr
	}
	m.enabled = on
	return nil
}

// PowerAdjustable implements Device.
func (m *MockDevice) PowerAdjustable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Adjustable
}

// SetPower implements Device.
func (m *MockDevice) SetPower(power int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.PowerErr != nil {
		return m.PowerErr
	}
	m.power = power
	return nil
}

// Snapshot returns the applied state and the number of device calls.
func (m *MockDevice) Snapshot() (State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Enabled: m.enabled, Power: m.power}, m.calls
}
