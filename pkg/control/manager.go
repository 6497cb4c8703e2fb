package control

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the current settings and handles updates.
type Manager struct {
	settings Settings
	mu       sync.RWMutex

	// OnChange is called after an update is stored, with the previous and new
	// settings. Its error is returned to the caller; the new settings stay.
	OnChange func(prev, next Settings) error
}

// NewManager creates a manager with the given initial settings.
func NewManager(initial Settings) *Manager {
	return &Manager{settings: initial}
}

// Get returns the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Set validates and stores s.
func (m *Manager) Set(s Settings) error {
	if errors := s.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	prev := m.settings
	m.settings = s
	callback := m.OnChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(prev, s); err != nil {
			return fmt.Errorf("failed to apply settings: %w", err)
		}
	}

	return nil
}

// ApplyPreset replaces the settings with a named preset.
func (m *Manager) ApplyPreset(name string) error {
	p := GetPreset(name)
	if p == nil {
		return fmt.Errorf("unknown preset: %s", name)
	}
	return m.Set(*p)
}

// Update changes specific fields. Accepts a map of field names to values, as
// decoded from a JSON body; a "preset" key is applied first.
func (m *Manager) Update(params map[string]interface{}) error {
	s := m.Get()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		s = *preset
		delete(params, "preset")
	}

	for key, value := range params {
		switch key {
		case "detection_enabled":
			if v, ok := value.(bool); ok {
				s.DetectionEnabled = v
			}
		case "ear_threshold":
			if v, ok := toFloat(value); ok {
				s.EARThreshold = v
			}
		case "torch_enabled":
			if v, ok := value.(bool); ok {
				s.TorchEnabled = v
			}
		case "torch_power":
			if v, ok := toInt(value); ok {
				s.TorchPower = v
			}
		default:
			return fmt.Errorf("unknown setting: %s", key)
		}
	}

	return m.Set(s)
}

// Map returns the current settings as a map for JSON serialization.
func (m *Manager) Map() map[string]interface{} {
	data, _ := json.Marshal(m.Get())
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
