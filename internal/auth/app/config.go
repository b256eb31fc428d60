package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer     string // Required: external base URL, also the token issuer claim
	HMACSecret string // Required: shared secret for HS256 token signing (min 32 bytes)

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./mcp-auth.db)
	ResourcePath         string        // Optional: default audience path under the issuer (default: /mcp/api)
	AccessTokenTTL       time.Duration // Optional: access token lifetime (default: 1h)
	RefreshTokenTTL      time.Duration // Optional: refresh token lifetime (default: 720h)
	AuthorizationCodeTTL time.Duration // Optional: authorization code lifetime (default: 30m)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("MCP_AUTH_ISSUER", "http://localhost:8080"),
		HMACSecret:           os.Getenv("MCP_AUTH_HMAC_SECRET"),
		DatabaseFile:         getEnvOrDefault("MCP_AUTH_DATABASE_FILE", "mcp-auth.db"),
		ResourcePath:         getEnvOrDefault("MCP_AUTH_RESOURCE_PATH", "/mcp/api"),
		AccessTokenTTL:       getEnvDurationOrDefault("MCP_AUTH_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:      getEnvDurationOrDefault("MCP_AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		AuthorizationCodeTTL: getEnvDurationOrDefault("MCP_AUTH_CODE_TTL", 30*time.Minute),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

// Validate rejects configurations the server cannot safely run with.
func (c Config) Validate() error {
	if c.HMACSecret == "" {
		return fmt.Errorf("MCP_AUTH_HMAC_SECRET is required")
	}
	if c.Issuer == "" {
		return fmt.Errorf("MCP_AUTH_ISSUER is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as seconds, matching how the lifetimes are
	// usually configured.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
