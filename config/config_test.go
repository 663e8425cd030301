package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, BackendNone, cfg.MQ.Backend)
	assert.Equal(t, BackendNone, cfg.Storage.Backend)
	assert.Equal(t, 10*time.Second, cfg.Advisory.Timeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("ADVISORY_API_KEY", "key")
	t.Setenv("ADVISORY_TIMEOUT", "3s")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("REDIS_LEADERBOARD_TTL", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "key", cfg.Advisory.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Advisory.Timeout)
	assert.Equal(t, BackendRabbitMQ, cfg.MQ.Backend)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
