/*
Package config reads the service configuration from the environment.
A .env file next to the binary is loaded automatically.
*/
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"CareLens/internal/conversation"
	gs "CareLens/internal/geminiservice"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port     int
	AppEnv   string
	LogLevel string

	GeminiAPIKey      string
	GeminiBaseURL     string
	GeminiModel       string
	GeminiTimeout     time.Duration
	GeminiMaxAttempts int

	SessionSecret   string
	SessionCapacity int
	SessionTTL      time.Duration
	// SessionMemoryBytes caps the media held by all live conversations.
	SessionMemoryBytes int64

	MaxUploadBytes     int64
	RateLimitPerMinute int
	// TrustedProxies may set X-Forwarded-For; nobody else can.
	TrustedProxies []string
}

// Load reads every setting, falling back to defaults for missing or invalid values.
// A missing GEMINI_API_KEY is not an error here; requests fail with a
// configuration error when they are made.
func Load() *Config {
	return &Config{
		Port:     envInt("PORT", 8080),
		AppEnv:   envString("APP_ENV", "development"),
		LogLevel: envString("LOG_LEVEL", "info"),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:     envString("GEMINI_API_URL", gs.DefaultBaseURL),
		GeminiModel:       envString("GEMINI_MODEL", gs.DefaultModel),
		GeminiTimeout:     time.Duration(envInt("GEMINI_TIMEOUT_SECONDS", 60)) * time.Second,
		GeminiMaxAttempts: envInt("GEMINI_MAX_ATTEMPTS", 1),

		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionCapacity:    envInt("SESSION_CAPACITY", conversation.DefaultCapacity),
		SessionTTL:         time.Duration(envInt("SESSION_TTL_MINUTES", int(conversation.DefaultTTL/time.Minute))) * time.Minute,
		SessionMemoryBytes: int64(envInt("SESSION_MEMORY_MB", int(conversation.DefaultMaxBytes>>20))) << 20,

		MaxUploadBytes:     int64(envInt("MAX_UPLOAD_MB", 20)) << 20,
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 30),
		TrustedProxies:     envList("TRUSTED_PROXIES"),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GeminiOptions builds the transport options from the config.
func (c *Config) GeminiOptions() gs.Options {
	return gs.Options{
		APIKey:      c.GeminiAPIKey,
		BaseURL:     c.GeminiBaseURL,
		Model:       c.GeminiModel,
		Timeout:     c.GeminiTimeout,
		MaxAttempts: c.GeminiMaxAttempts,
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
