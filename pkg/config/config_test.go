package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gdport/pkg/config"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gdport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSuffix, cfg.Convert.Suffix)
	assert.Equal(t, config.DefaultWorkers, cfg.Convert.Workers)
	assert.False(t, cfg.Convert.Partial)
	assert.Equal(t, int64(4<<20), cfg.Convert.MaxFileSizeBytes())
	assert.Equal(t, config.DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.Server.IdleTimeout)
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Observability.SampleRatio, 0)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `
convert:
  suffix: "_Port"
  partial: true
  workers: 4
  max_file_size: "512KiB"
  rules_file: "rules.yaml"
logging:
  level: debug
  format: json
server:
  port: 9000
  write_timeout: "2m"
observability:
  otlp_endpoint: "localhost:4317"
  otlp_headers: "team=tools"
  sample_ratio: 0.25
`))
	require.NoError(t, err)

	assert.Equal(t, "_Port", cfg.Convert.Suffix)
	assert.True(t, cfg.Convert.Partial)
	assert.Equal(t, 4, cfg.Convert.Workers)
	assert.Equal(t, int64(512<<10), cfg.Convert.MaxFileSizeBytes())
	assert.Equal(t, "rules.yaml", cfg.Convert.RulesFile)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)

	tel := cfg.Telemetry(observability.ModeServe, "1.2.3")
	assert.Equal(t, "gdport", tel.ServiceName)
	assert.Equal(t, "1.2.3", tel.ServiceVersion)
	assert.Equal(t, observability.ModeServe, tel.Mode)
	assert.Equal(t, "localhost:4317", tel.OTLPEndpoint)
	assert.Equal(t, map[string]string{"team": "tools"}, tel.OTLPHeaders)
	assert.InDelta(t, 0.25, tel.SampleRatio, 1e-9)
	assert.Equal(t, slog.LevelDebug, tel.LogLevel)
	assert.True(t, tel.LogJSON)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("GDPORT_CONVERT_SUFFIX", "_Env")
	t.Setenv("GDPORT_SERVER_PORT", "9090")
	t.Setenv("GDPORT_LOGGING_FORMAT", "json")

	cfg, err := config.LoadConfig(writeConfig(t, "convert:\n  suffix: _File\n"))
	require.NoError(t, err)

	assert.Equal(t, "_Env", cfg.Convert.Suffix)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "port", content: "server:\n  port: 70000\n", want: config.ErrInvalidPort},
		{name: "workers", content: "convert:\n  workers: -1\n", want: config.ErrInvalidWorkers},
		{name: "empty suffix", content: "convert:\n  suffix: \"\"\n", want: config.ErrInvalidSuffix},
		{name: "suffix with separator", content: "convert:\n  suffix: a/b\n", want: config.ErrInvalidSuffix},
		{name: "size", content: "convert:\n  max_file_size: lots\n", want: config.ErrInvalidSize},
		{name: "body size", content: "server:\n  max_body_size: huge\n", want: config.ErrInvalidSize},
		{name: "level", content: "logging:\n  level: loud\n", want: observability.ErrUnknownLogLevel},
		{name: "format", content: "logging:\n  format: xml\n", want: config.ErrInvalidLogFormat},
		{name: "sample ratio", content: "observability:\n  sample_ratio: 2\n", want: config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "0", want: 0},
		{in: "1KiB", want: 1024},
		{in: " 2MB ", want: 2_000_000},
		{in: "100", want: 100},
		{in: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := config.ParseSize(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, config.ErrInvalidSize)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
