package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the mirrord configuration file.
type Config struct {
	Service     string `toml:"Service"`
	Environment string `toml:"Environment"`
	// StreamPath is the framed envelope stream to follow. "-" reads stdin.
	StreamPath string `toml:"StreamPath"`
	// MaxFrameBytes bounds one envelope on the stream; zero uses the codec
	// default.
	MaxFrameBytes int `toml:"MaxFrameBytes"`
	// JournalDir holds the LevelDB envelope journal. Empty disables it.
	JournalDir     string `toml:"JournalDir"`
	InspectAddress string `toml:"InspectAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	// UnknownVariantLogEvery is the minimum number of seconds between two
	// warnings about unrecognized mutation variants.
	UnknownVariantLogEvery int `toml:"UnknownVariantLogEvery"`
	// ResyncCommand, when set, is run with the failure reason in
	// MIRROR_RESYNC_REASON whenever the mirror needs a fresh full report.
	ResyncCommand []string  `toml:"ResyncCommand,omitempty"`
	Logging       Logging   `toml:"logging"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// there first if none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	return &Config{
		Service:                "mirrord",
		Environment:            "dev",
		StreamPath:             "-",
		JournalDir:             "./mirror-data/journal",
		InspectAddress:         "127.0.0.1:8470",
		MetricsAddress:         "127.0.0.1:9470",
		UnknownVariantLogEvery: 60,
		Logging:                Logging{AllowFields: []string{}},
		Telemetry:              Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
}

func (c *Config) normalize() {
	c.Service = strings.TrimSpace(c.Service)
	c.Environment = strings.TrimSpace(c.Environment)
	c.StreamPath = strings.TrimSpace(c.StreamPath)
	if c.StreamPath == "" {
		c.StreamPath = "-"
	}
	if c.Logging.AllowFields == nil {
		c.Logging.AllowFields = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
