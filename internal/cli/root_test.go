package cli

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackharness/internal/config"
)

func TestLoadConfig_ModeFlagThroughViper(t *testing.T) {
	app := NewApp()
	rootCmd := app.CreateRootCommand()
	require.NoError(t, rootCmd.PersistentFlags().Set("mode", "replay"))

	cfg, err := app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.ModeReplay, cfg.Mode)
}

func TestLoadConfig_ModeEnvThroughViper(t *testing.T) {
	t.Setenv("STACKHARNESS_MODE", "record")

	app := NewApp()
	app.CreateRootCommand()

	cfg, err := app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.ModeRecord, cfg.Mode)
}

func TestLoadConfig_InvalidModeFlag(t *testing.T) {
	app := NewApp()
	rootCmd := app.CreateRootCommand()
	require.NoError(t, rootCmd.PersistentFlags().Set("mode", "sometimes"))

	_, err := app.loadConfig()
	assert.Error(t, err)
}

func TestLogLevelEnvThroughViper(t *testing.T) {
	t.Setenv("STACKHARNESS_LOG_LEVEL", "debug")

	app := NewApp()
	app.CreateRootCommand()

	assert.Equal(t, "debug", viper.GetString("log-level"))
}
