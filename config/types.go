package config

import "time"

// Logging controls log redaction.
type Logging struct {
	// AllowFields lists log fields printed in clear, such as "friend_name".
	AllowFields []string `toml:"AllowFields"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string  `toml:"Endpoint"`
	Insecure bool    `toml:"Insecure"`
	Traces   bool    `toml:"Traces"`
	Metrics  bool    `toml:"Metrics"`
	Sampling float64 `toml:"Sampling"`
}

// UnknownVariantInterval returns the throttle for unknown variant warnings.
func (c *Config) UnknownVariantInterval() time.Duration {
	return time.Duration(c.UnknownVariantLogEvery) * time.Second
}
