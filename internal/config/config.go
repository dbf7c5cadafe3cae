// Package config resolves cmd/ctfdump's configuration by layering
// command-line flags over environment variables over a config file, the
// flag/config/env precedence idiom used by spf13/cobra+spf13/viper
// pairs throughout the example corpus. The core decoding packages
// (vm, proc, metadata) take no configuration of their own; this
// package exists only for the CLI embedding application (§12).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is cmd/ctfdump's resolved configuration.
type Config struct {
	// TracePath is the resolved trace path setting. The dump subcommand
	// does not read it; it takes its input file from its own --stream
	// flag.
	TracePath string `mapstructure:"trace_path"`
	// OutputFormat is the resolved output format setting ("text" or
	// "json"). The dump subcommand does not read it and always prints
	// text.
	OutputFormat string `mapstructure:"output_format"`
	// LogLevel is the zap level name ("debug", "info", "warn", "error").
	LogLevel string `mapstructure:"log_level"`
	// MetricsAddr, when non-empty, is the address cmd/ctfdump serves
	// /metrics on.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// defaults are applied before any flag, environment variable, or
// config file value is layered in.
var defaults = Config{
	OutputFormat: "text",
	LogLevel:     "info",
}

// Load resolves a Config from flags, then YACTFR_-prefixed environment
// variables, then ~/.config/yactfr/config.yaml, in that precedence
// order (flags win). flags may be nil, in which case only the
// environment and config file are consulted.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("trace_path", defaults.TracePath)
	v.SetDefault("output_format", defaults.OutputFormat)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("metrics_addr", defaults.MetricsAddr)

	v.SetEnvPrefix("yactfr")
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "yactfr"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	// Flag names are dash-cased for the CLI (--log-level) while viper
	// keys are underscore-cased to match Config's mapstructure tags
	// (--log-level, YACTFR_LOG_LEVEL, log_level: in the config file all
	// resolve to the same key); BindPFlags alone would bind each flag
	// under its own dashed name instead.
	bindings := map[string]string{
		"trace_path":   "trace",
		"output_format": "format",
		"log_level":     "log-level",
		"metrics_addr":  "metrics-addr",
	}
	if flags != nil {
		for key, flagName := range bindings {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: binding flag %s: %w", flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return &cfg, nil
}
