package control

import "sort"

// Preset names for common configurations
const (
	PresetDefault   = "default"
	PresetSensitive = "sensitive"
	PresetRelaxed   = "relaxed"
	PresetNight     = "night"
)

// Presets returns all available preset configurations.
func Presets() map[string]Settings {
	return map[string]Settings{
		PresetDefault:   DefaultSettings(),
		PresetSensitive: SensitiveSettings(),
		PresetRelaxed:   RelaxedSettings(),
		PresetNight:     NightSettings(),
	}
}

// PresetNames returns the available preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(Presets()))
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset by name, or nil if not found.
func GetPreset(name string) *Settings {
	if s, ok := Presets()[name]; ok {
		return &s
	}
	return nil
}

// SensitiveSettings alerts earlier, for drivers with narrow eyes or long drives.
func SensitiveSettings() Settings {
	s := DefaultSettings()
	s.EARThreshold = 0.26
	return s
}

// RelaxedSettings alerts only on clearly closed eyes.
func RelaxedSettings() Settings {
	s := DefaultSettings()
	s.EARThreshold = 0.18
	return s
}

// NightSettings turns the illuminator on at high power.
func NightSettings() Settings {
	s := DefaultSettings()
	s.TorchEnabled = true
	s.TorchPower = 80
	return s
}
