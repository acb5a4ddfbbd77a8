package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STATIC_DIR", "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, ":8000", cfg.ListenAddr())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "./web", cfg.StaticDir)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STATIC_DIR", "/srv/chat")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "/srv/chat", cfg.StaticDir)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STATIC_DIR", "")

	cfg, err := Load([]string{"-p", "7000", "--log-level", "warn"})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STATIC_DIR", "")

	_, err := Load([]string{"--port", "70000"})
	assert.ErrorIs(t, err, ErrInvalidPort)

	_, err = Load([]string{"--log-level", "loud"})
	assert.Error(t, err)

	_, err = Load([]string{"--bogus"})
	assert.ErrorIs(t, err, ErrParseFlags)
}
