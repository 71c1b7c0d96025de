package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeFile(t, `
http:
  addr: ":9090"
  read_timeout: 3s
diagnostics:
  tonnage: 20
  data_window: 30
  economizer_type: hl
devices:
  rtu-7:
    device_type: RTU
    tonnage: 7.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 30.0, cfg.Diagnostics.DataWindow)
	assert.Equal(t, 10, cfg.Diagnostics.NoRequiredData)
	assert.Equal(t, EconomizerHL, cfg.Diagnostics.Economizer())

	d, err := cfg.ForDevice("rtu-7")
	require.NoError(t, err)
	assert.Equal(t, DeviceRTU, d.Device())
	assert.Equal(t, 7.5, d.Tonnage)
	assert.Equal(t, 30.0, d.DataWindow, "unset fields keep the defaults")

	other, err := cfg.ForDevice("ahu-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, other.Tonnage)
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	path := writeFile(t, "diagnostics:\n  tonnage: 10\n")
	require.NoError(t, os.Remove(path))

	_, err := Load(path)
	require.Error(t, err, "tonnage has no default")
	assert.True(t, errors.Is(err, ErrInvalid))

	path = writeFile(t, "diagnostics:\n  tonnage: 10\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
}

func TestDiagnosticsValidate(t *testing.T) {
	base := DefaultDiagnostics()
	base.Tonnage = 10
	require.NoError(t, base.Validate())

	cases := map[string]func(d *Diagnostics){
		"window":      func(d *Diagnostics) { d.DataWindow = 0 },
		"count":       func(d *Diagnostics) { d.NoRequiredData = 0 },
		"sample rate": func(d *Diagnostics) { d.DataSampleRate = -1 },
		"eer":         func(d *Diagnostics) { d.EER = 0 },
		"mat range":   func(d *Diagnostics) { d.MATLowThreshold = 95 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := base
			mutate(&d)
			assert.ErrorIs(t, d.Validate(), ErrInvalid)
		})
	}
}

func TestDiagnosticsDerivedValues(t *testing.T) {
	d := DefaultDiagnostics()
	d.Tonnage = 10
	d.DataSampleRate = 0.5
	assert.Equal(t, 15*time.Minute, d.Window())
	assert.Equal(t, 30*time.Second, d.SampleInterval())
	assert.Equal(t, 4*time.Minute, d.SteadyStateDelay())
	assert.Equal(t, 4000.0, d.CFM())
}

func TestDeviceOverrideValidated(t *testing.T) {
	path := writeFile(t, `
diagnostics:
  tonnage: 10
devices:
  ahu-2:
    eer: 0
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}
