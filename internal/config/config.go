package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	// DoctorOnline scheduling proxy
	ProxyBaseURL  string
	ProxyAPIToken string
	ProxyTimeout  time.Duration

	// Google Calendar OAuth (scheduler sources)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// DisplayTimezone is the timezone used to bucket free-time slots into
	// calendar days for presentation.
	DisplayTimezone string

	AdminJWTSecret string

	DefaultSlotDurationMins int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ProxyBaseURL:  getEnv("PROXY_BASE_URL", ""),
		ProxyAPIToken: getEnv("PROXY_API_TOKEN", ""),
		ProxyTimeout:  getEnvAsDuration("PROXY_TIMEOUT", 30*time.Second),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),

		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Asia/Jerusalem"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		DefaultSlotDurationMins: getEnvAsInt("DEFAULT_SLOT_DURATION_MINS", 15),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
