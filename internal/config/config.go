package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Draft persistence
	DraftStore            string
	DraftsTable           string
	DraftsBucket          string
	DraftsPrefix          string
	DraftMemoryMaxBytes   int
	DraftRedisTTL         time.Duration
	DraftAutosaveInterval time.Duration
	DraftDebounce         time.Duration

	// Request coordination
	RequestMinInterval time.Duration

	// GoHighLevel
	GHLBaseURL    string
	GHLAPIKey     string
	GHLLocationID string
	GHLAPIVersion string
	GHLTimeout    time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	ShutdownTimeout    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DraftStore:            strings.ToLower(strings.TrimSpace(getEnv("DRAFT_STORE", "memory"))),
		DraftsTable:           getEnv("DRAFTS_TABLE", "practice_drafts"),
		DraftsBucket:          getEnv("DRAFTS_BUCKET", ""),
		DraftsPrefix:          getEnv("DRAFTS_PREFIX", "drafts"),
		DraftMemoryMaxBytes:   getEnvAsInt("DRAFT_MEMORY_MAX_BYTES", 5<<20),
		DraftRedisTTL:         getEnvAsDuration("DRAFT_REDIS_TTL", 30*24*time.Hour),
		DraftAutosaveInterval: getEnvAsDuration("DRAFT_AUTOSAVE_INTERVAL", 30*time.Second),
		DraftDebounce:         getEnvAsDuration("DRAFT_DEBOUNCE", 2*time.Second),

		RequestMinInterval: getEnvAsDuration("REQUEST_MIN_INTERVAL", 2*time.Second),

		GHLBaseURL:    getEnv("GHL_BASE_URL", "https://services.leadconnectorhq.com"),
		GHLAPIKey:     getEnv("GHL_API_KEY", ""),
		GHLLocationID: getEnv("GHL_LOCATION_ID", ""),
		GHLAPIVersion: getEnv("GHL_API_VERSION", "2021-07-28"),
		GHLTimeout:    getEnvAsDuration("GHL_TIMEOUT", 15*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
