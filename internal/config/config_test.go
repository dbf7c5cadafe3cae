package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFlagsOrEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	flags := pflag.NewFlagSet("ctfdump", pflag.ContinueOnError)
	flags.String("trace", "", "")
	flags.String("format", "text", "")
	flags.String("log-level", "info", "")
	flags.String("metrics-addr", "", "")
	require.NoError(t, flags.Set("log-level", "debug"))
	require.NoError(t, flags.Set("format", "json"))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YACTFR_LOG_LEVEL", "error")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YACTFR_LOG_LEVEL", "error")

	flags := pflag.NewFlagSet("ctfdump", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Set("log-level", "debug"))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadIgnoresMissingConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := os.Stat(t.TempDir())
	require.NoError(t, err)

	_, err = Load(nil)
	require.NoError(t, err)
}
