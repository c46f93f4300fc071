package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
system:
  logging:
    level: debug
  setup_retry: 15s
  storage:
    enabled: true
  api:
    enabled: true
    listen_address: ":9090"
meters:
  - meter_id: home
    host: 192.168.1.50
    poll_interval: 10s
  - host: 192.168.1.51
    port: 8082
  - meter_id: spare
    enabled: false
`

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.System.Logging.Level)
	assert.Equal(t, 15*time.Second, cfg.System.SetupRetry)
	assert.Equal(t, DefaultMaxWorkers, cfg.System.MaxWorkers)
	assert.True(t, cfg.System.Storage.Enabled)
	assert.Equal(t, DefaultDBPath, cfg.System.Storage.DBPath)
	assert.Equal(t, ":9090", cfg.System.API.ListenAddress)
	assert.Equal(t, DefaultBridgeListen, cfg.System.Bridge.ListenAddress)
	assert.Equal(t, DefaultNATSPrefix, cfg.System.NATS.SubjectPrefix)

	require.Len(t, cfg.Meters, 3)
	home := cfg.Meters[0]
	assert.Equal(t, 82, home.Port)
	assert.Equal(t, 10*time.Second, home.PollInterval)
	assert.Equal(t, 10*time.Second, home.Timeout)
	assert.True(t, home.IsEnabled())

	second := cfg.Meters[1]
	assert.Equal(t, "192.168.1.51", second.MeterID)
	assert.Equal(t, 8082, second.Port)
	assert.Equal(t, DefaultPollInterval, second.PollInterval)

	enabled := cfg.EnabledMeters()
	require.Len(t, enabled, 2)
	assert.False(t, cfg.Meters[2].IsEnabled())
}

func TestParseYAMLValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{name: "no meters", yaml: "system: {}\n", want: ErrNoMeters},
		{name: "only disabled", yaml: "meters:\n  - host: a\n    enabled: false\n", want: ErrNoMeters},
		{name: "missing host", yaml: "meters:\n  - meter_id: x\n", want: ErrMissingHost},
		{name: "duplicate id", yaml: "meters:\n  - host: a\n  - meter_id: a\n    host: b\n", want: ErrDuplicateID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseYAMLRejectsGarbage(t *testing.T) {
	_, err := ParseYAML([]byte("meters: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")
}

func TestApplyEnvOverridesFirstMeter(t *testing.T) {
	t.Setenv("SMARTMETER_HOST", "10.0.0.7")
	t.Setenv("SMARTMETER_PORT", "8080")

	cfg, err := ParseYAML([]byte("meters:\n  - meter_id: home\n    host: 192.168.1.50\n"))
	require.NoError(t, err)

	assert.Equal(t, "home", cfg.Meters[0].MeterID)
	assert.Equal(t, "10.0.0.7", cfg.Meters[0].Host)
	assert.Equal(t, 8080, cfg.Meters[0].Port)
}

func TestApplyEnvCreatesMeter(t *testing.T) {
	t.Setenv("SMARTMETER_HOST", "10.0.0.7")
	t.Setenv("SMARTMETER_PORT", "")

	cfg, err := ParseYAML([]byte("system: {}\n"))
	require.NoError(t, err)

	require.Len(t, cfg.Meters, 1)
	assert.Equal(t, envMeterID, cfg.Meters[0].MeterID)
	assert.Equal(t, 82, cfg.Meters[0].Port)
}

func TestApplyEnvBadPort(t *testing.T) {
	t.Setenv("SMARTMETER_HOST", "")
	t.Setenv("SMARTMETER_PORT", "eighty")

	_, err := ParseYAML([]byte("meters:\n  - host: a\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMARTMETER_PORT")
}

func TestApplyEnvOverridesLogging(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_OUTPUT", "stderr")

	cfg, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.System.Logging.Level)
	assert.Equal(t, "stderr", cfg.System.Logging.Output)
}
