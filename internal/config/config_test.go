package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/irdrowsy/pkg/source"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "irdrowsy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "result", cfg.SnapshotDir)
	assert.Equal(t, 0.22, cfg.Settings.EARThreshold)
	assert.Equal(t, source.BackendAuto, cfg.Source.Backend)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
source:
  backend: mock
  device: /dev/video2
settings:
  ear_threshold: 0.3
  torch_power: 70
interval: 50ms
snapshot_dir: shots
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, source.BackendMock, cfg.Source.Backend)
	assert.Equal(t, "/dev/video2", cfg.Source.Device)
	assert.Equal(t, 0.3, cfg.Settings.EARThreshold)
	assert.Equal(t, 70, cfg.Settings.TorchPower)
	assert.Equal(t, 50*time.Millisecond, cfg.Interval)
	assert.Equal(t, "shots", cfg.SnapshotDir)

	// Untouched keys keep their defaults.
	assert.True(t, cfg.Settings.DetectionEnabled)
	assert.Equal(t, 4, cfg.Source.BufferCount)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "addr: \":9000\"\nlog_level: warn\n")
	t.Setenv("IRDROWSY_ADDR", ":9100")
	t.Setenv("IRDROWSY_SOURCE_BACKEND", "mock")
	t.Setenv("IRDROWSY_HEADLESS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, source.BackendMock, cfg.Source.Backend)
	assert.True(t, cfg.Headless)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "source: [unclosed"))
	assert.Error(t, err)

	t.Setenv("IRDROWSY_INTERVAL", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Source.Backend = "dshow" }},
		{"threshold out of range", func(c *Config) { c.Settings.EARThreshold = 0.9 }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"empty snapshot dir", func(c *Config) { c.SnapshotDir = "" }},
		{"bad mesh input", func(c *Config) { c.Landmarks.MeshInput = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_MockDetectorSkipsLandmarks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MockDetector = true
	cfg.Landmarks.MeshInput = 0
	assert.NoError(t, cfg.Validate())
}
