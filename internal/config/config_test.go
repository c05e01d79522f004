package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("AUTH_TOKEN_TTL_MINUTES", "30")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 30*time.Minute, cfg.AuthTokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
	assert.True(t, cfg.Telemetry.OTelEnabled)
	assert.Equal(t, "grpc", cfg.Telemetry.OTLPProtocol)
}

func TestGetenvFallbacks(t *testing.T) {
	t.Setenv("VISADESK_TEST_BOOL", "maybe")
	t.Setenv("VISADESK_TEST_INT", "x")

	assert.True(t, getenvBool("VISADESK_TEST_BOOL", true))
	assert.Equal(t, int64(7), getenvInt64("VISADESK_TEST_INT", 7))
	assert.Equal(t, "def", getenv("VISADESK_TEST_UNSET", "def"))
}
