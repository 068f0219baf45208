package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "APP_ENV", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_MAX_ATTEMPTS", "MAX_UPLOAD_MB", "SESSION_TTL_MINUTES", "SESSION_MEMORY_MB", "TRUSTED_PROXIES"} {
		t.Setenv(k, "")
	}

	c := Load()

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "development", c.AppEnv)
	assert.False(t, c.IsProduction())
	assert.Empty(t, c.GeminiAPIKey)
	assert.Equal(t, 1, c.GeminiMaxAttempts)
	assert.Equal(t, int64(20<<20), c.MaxUploadBytes)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, int64(512<<20), c.SessionMemoryBytes)
	assert.Empty(t, c.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("GEMINI_MODEL", "gemini-test")
	t.Setenv("GEMINI_MAX_ATTEMPTS", "3")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("SESSION_MEMORY_MB", "64")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,127.0.0.1 ")

	c := Load()

	assert.Equal(t, 9090, c.Port)
	assert.True(t, c.IsProduction())
	opts := c.GeminiOptions()
	assert.Equal(t, "secret", opts.APIKey)
	assert.Equal(t, "gemini-test", opts.Model)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, int64(5<<20), c.MaxUploadBytes)
	assert.Equal(t, int64(64<<20), c.SessionMemoryBytes)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, c.TrustedProxies)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("PORT", "abc")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-4")

	c := Load()
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, 30, c.RateLimitPerMinute)
}

func TestConfigureLogger(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	(&Config{LogLevel: "debug"}).ConfigureLogger()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	(&Config{LogLevel: "nonsense", AppEnv: "production"}).ConfigureLogger()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
