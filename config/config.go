// Package config loads the runtime configuration shared by the
// cmd/zeroeq-* daemons: session label, discovery timeout, and metrics
// listen address, from environment variables (or an optional config
// file) via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/zeroeq-go/zeroeq/session"
)

// Config holds the settings every zeroeq-* command reads at startup.
type Config struct {
	// Session is the label paired publishers and subscribers must
	// share. Defaults to session.Default, which resolves further via
	// ZEROEQ_SESSION or the OS username.
	Session string `mapstructure:"session"`

	// URI is the bind (publisher) or connect (subscriber) endpoint.
	// Empty means wildcard/discovery-driven, per uri.Parse's rules.
	URI string `mapstructure:"uri"`

	// DiscoveryTimeout is loaded from discovery_timeout
	// (ZEROEQ_DISCOVERY_TIMEOUT). No package in this module reads it;
	// a subscriber's browse runs without a startup deadline.
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the metrics server.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Session:          session.Default,
		DiscoveryTimeout: 5 * time.Second,
		MetricsAddr:      ":9469",
	}
}

// Load reads configuration from ZEROEQ_-prefixed environment
// variables, optionally overlaid on a config file at path (ignored if
// empty), on top of Default's values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("zeroeq")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("session", def.Session)
	v.SetDefault("uri", def.URI)
	v.SetDefault("discovery_timeout", def.DiscoveryTimeout)
	v.SetDefault("metrics_addr", def.MetricsAddr)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return c, nil
}
