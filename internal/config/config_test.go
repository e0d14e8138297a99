package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, ":3000", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []byte("test-secret"), cfg.JWT.Secret)
	assert.Equal(t, time.Duration(0), cfg.Presence.BroadcastDebounce)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", ":9000")
	t.Setenv("PRESENCE_DEBOUNCE", "250ms")
	t.Setenv("JWT_EXPIRES_IN", "8h")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Presence.BroadcastDebounce)
	assert.Equal(t, 8*time.Hour, cfg.JWT.ExpiresIn)
}
