package metrics

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	defaultBridgeMetricsPort     = 2112
	defaultMetricsHost           = "127.0.0.1"
	defaultMetricsUpdateInterval = 15 * time.Second
)

// Config is the [metrics] section of the bridge configuration.
type Config struct {
	Host           string        `long:"host"           description:"IP the Prometheus endpoint listens on"`
	Port           int           `long:"port"           description:"Port of the Prometheus endpoint"`
	UpdateInterval time.Duration `long:"updateinterval" description:"The interval at which the bridge state gauges are refreshed"`
}

func DefaultBridgeConfig() *Config {
	return &Config{
		Host:           defaultMetricsHost,
		Port:           defaultBridgeMetricsPort,
		UpdateInterval: defaultMetricsUpdateInterval,
	}
}

func (cfg *Config) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Port)
	}
	if net.ParseIP(cfg.Host) == nil {
		return fmt.Errorf("invalid metrics host: %v", cfg.Host)
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("metrics update interval must be positive, got %s", cfg.UpdateInterval)
	}
	return nil
}

// Address is the host:port the metrics server listens on.
func (cfg *Config) Address() (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), nil
}
