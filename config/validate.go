package config

import (
	"fmt"
	"net"
)

// Validate reports the first setting mirrord cannot run with.
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("Service must not be empty")
	}
	if c.UnknownVariantLogEvery < 0 {
		return fmt.Errorf("UnknownVariantLogEvery must not be negative")
	}
	if c.MaxFrameBytes < 0 {
		return fmt.Errorf("MaxFrameBytes must not be negative")
	}
	for name, addr := range map[string]string{"InspectAddress": c.InspectAddress, "MetricsAddress": c.MetricsAddress} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.InspectAddress != "" && c.InspectAddress == c.MetricsAddress {
		return fmt.Errorf("InspectAddress and MetricsAddress must differ")
	}
	if s := c.Telemetry.Sampling; s < 0 || s > 1 {
		return fmt.Errorf("telemetry: Sampling must be within [0, 1]")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: Endpoint required when exporting")
	}
	return nil
}
