package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the companion daemon.
type Config struct {
	Port string
	Env  string

	// Remote assistant
	AssistantURL   string
	RequestTimeout time.Duration
	ProbePath      string
	ProbeInterval  time.Duration

	// Durable store
	Store       string // sqlite, memory, redis or postgres
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
	StoreKey    string // seals values at rest when set

	// Voice
	Language   string
	TTSCommand string
	STTCommand string

	// Local API
	AllowedOrigins     []string
	APITokenHash       string   // bcrypt hash; empty disables token auth
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics when the selected store has no URL.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("CAREBOT_PORT", "8765"),
		Env:            getEnv("CAREBOT_ENV", "development"),
		AssistantURL:   strings.TrimRight(getEnv("CAREBOT_ASSISTANT_URL", "http://localhost:5000"), "/"),
		RequestTimeout: getDuration("CAREBOT_REQUEST_TIMEOUT", 30*time.Second),
		ProbePath:      getEnv("CAREBOT_PROBE_PATH", "/api/alerts"),
		ProbeInterval:  getDuration("CAREBOT_PROBE_INTERVAL", 10*time.Second),
		Store:          strings.ToLower(getEnv("CAREBOT_STORE", "sqlite")),
		SQLitePath:     getEnv("CAREBOT_SQLITE_PATH", "./data/carebot.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		StoreKey:       os.Getenv("CAREBOT_STORE_KEY"),
		Language:       strings.ToLower(getEnv("CAREBOT_LANGUAGE", "en")),
		TTSCommand:     os.Getenv("CAREBOT_TTS_COMMAND"),
		STTCommand:     os.Getenv("CAREBOT_STT_COMMAND"),
		AllowedOrigins: getList("CAREBOT_ALLOWED_ORIGINS", []string{"*"}),
		APITokenHash:   os.Getenv("CAREBOT_API_TOKEN_HASH"),

		RateLimitWhitelist: getList("CAREBOT_RATE_LIMIT_WHITELIST", nil),
	}

	if cfg.Env == "production" {
		switch cfg.Store {
		case "redis":
			if cfg.RedisURL == "" {
				panic("REDIS_URL is required in production when CAREBOT_STORE=redis")
			}
		case "postgres":
			if cfg.DatabaseURL == "" {
				panic("DATABASE_URL is required in production when CAREBOT_STORE=postgres")
			}
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("30s") or bare seconds ("30").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(value + "s"); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
