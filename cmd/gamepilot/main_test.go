package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLogLevel(t *testing.T) {
	t.Run("falls back to config value", func(t *testing.T) {
		assert.Equal(t, "warn", resolveLogLevel("warn"))
	})

	t.Run("env variable wins over config", func(t *testing.T) {
		t.Setenv("GAMEPILOT_LOG_LEVEL", "debug")
		assert.Equal(t, "debug", resolveLogLevel("warn"))
	})

	t.Run("flag wins over env and config", func(t *testing.T) {
		t.Setenv("GAMEPILOT_LOG_LEVEL", "debug")
		require.NoError(t, rootCmd.PersistentFlags().Set("log-level", "error"))
		defer rootCmd.PersistentFlags().Set("log-level", "")

		assert.Equal(t, "error", resolveLogLevel("warn"))
	})
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"dqn", "ppo", "sarsa", "q-learning", "qlearning"} {
		_, err := parseAlgorithm(name)
		assert.NoError(t, err, name)
	}
	_, err := parseAlgorithm("a3c")
	assert.Error(t, err)
}
