package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirrord.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mirrord.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesSettings(t *testing.T) {
	path := writeConfig(t, `Service = "mirror-eu"
Environment = "prod"
StreamPath = "/var/run/node/reports.sock"
MaxFrameBytes = 1048576
JournalDir = ""
InspectAddress = "0.0.0.0:8000"
MetricsAddress = "0.0.0.0:9000"
UnknownVariantLogEvery = 300
ResyncCommand = ["nodectl", "resync"]

[logging]
AllowFields = ["friend_name"]

[telemetry]
Endpoint = "collector:4318"
Traces = true
Sampling = 0.25
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mirror-eu", cfg.Service)
	require.Equal(t, "prod", cfg.Environment)
	require.Equal(t, "/var/run/node/reports.sock", cfg.StreamPath)
	require.Equal(t, 1<<20, cfg.MaxFrameBytes)
	require.Empty(t, cfg.JournalDir)
	require.Equal(t, 5*time.Minute, cfg.UnknownVariantInterval())
	require.Equal(t, []string{"nodectl", "resync"}, cfg.ResyncCommand)
	require.Equal(t, []string{"friend_name"}, cfg.Logging.AllowFields)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.Equal(t, 0.25, cfg.Telemetry.Sampling)
	// unset keys keep their defaults
	require.True(t, cfg.Telemetry.Insecure)
}

func TestLoadDefaultsStreamToStdin(t *testing.T) {
	cfg, err := Load(writeConfig(t, "StreamPath = \"  \"\n"))
	require.NoError(t, err)
	require.Equal(t, "-", cfg.StreamPath)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "ListenAddress = \":6001\"\n"))
	require.ErrorContains(t, err, "ListenAddress")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "Service = \n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty service":      func(c *Config) { c.Service = "" },
		"negative throttle":  func(c *Config) { c.UnknownVariantLogEvery = -1 },
		"negative frame":     func(c *Config) { c.MaxFrameBytes = -5 },
		"bad inspect addr":   func(c *Config) { c.InspectAddress = "nope" },
		"same addresses":     func(c *Config) { c.MetricsAddress = c.InspectAddress },
		"sampling too large": func(c *Config) { c.Telemetry.Sampling = 1.5 },
		"exporting without endpoint": func(c *Config) {
			c.Telemetry.Metrics = true
			c.Telemetry.Endpoint = ""
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, Default().Validate())
	cfg := Default()
	cfg.InspectAddress, cfg.MetricsAddress = "", ""
	require.NoError(t, cfg.Validate())
}
