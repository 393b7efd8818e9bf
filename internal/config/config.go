// Package config provides environment configuration for the client and the
// development gateway.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Gateway client settings
	GatewayURL      string
	Username        string
	GenerateTimeout time.Duration
	MetadataTimeout time.Duration
	ModelCacheTTL   time.Duration

	// Auth settings
	JWTSecret     string
	JWTExpiration time.Duration

	// Encryption key material (PEM file paths, optional)
	PrivateKeyFile    string
	PeerPublicKeyFile string

	// Dev gateway settings
	DevGatewayPort    string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	DefaultModel      string
	DevModels         string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Gateway client
		GatewayURL:      getEnv("GATEWAY_URL", "http://localhost:8080"),
		Username:        getEnv("CHAT_USERNAME", ""),
		GenerateTimeout: getDurationEnv("GENERATE_TIMEOUT", 60*time.Second),
		MetadataTimeout: getDurationEnv("METADATA_TIMEOUT", 20*time.Second),
		ModelCacheTTL:   getDurationEnv("MODEL_CACHE_TTL", 10*time.Minute),

		// Auth
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),

		// Encryption
		PrivateKeyFile:    getEnv("PRIVATE_KEY_FILE", ""),
		PeerPublicKeyFile: getEnv("PEER_PUBLIC_KEY_FILE", ""),

		// Dev gateway
		DevGatewayPort:    getEnv("PORT", "8080"),
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		DefaultModel:      getEnv("DEFAULT_MODEL", "gpt-4o-mini"),
		DevModels:         getEnv("DEV_MODELS", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
