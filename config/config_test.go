package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.False(t, cfg.GroupChatsEnabled)
	assert.Equal(t, 60, cfg.MessageRateLimit)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("GROUP_CHATS_ENABLED", "true")
	t.Setenv("MESSAGE_RATE_LIMIT", "5")
	t.Setenv("PRESENCE_MAX_AGE", "30s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.True(t, cfg.GroupChatsEnabled)
	assert.Equal(t, 5, cfg.MessageRateLimit)
	assert.Equal(t, 30*time.Second, cfg.PresenceMaxAge)
	assert.Equal(t, 0, cfg.RedisDB)
}
