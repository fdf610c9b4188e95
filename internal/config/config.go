// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Market data provider (quotes)
	QuoteAPIURL   string
	QuoteAPIKey   string
	PriceTimeout  time.Duration // Upper bound on a single price lookup
	QuoteCacheTTL time.Duration

	// Proxied upstreams (news / video search)
	NewsAPIURL  string
	NewsAPIKey  string
	VideoAPIURL string
	VideoAPIKey string

	// Off-site backups
	Backup *BackupConfig
}

// BackupConfig holds S3 backup settings. Backups are disabled unless a bucket
// is configured.
type BackupConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Schedule string // cron spec
}

// Enabled reports whether backups should run.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. STOCKFOLIO_DATA_DIR environment variable
	// 2. ./data
	// Always resolved to an absolute path, created if missing.
	dataDir := getEnv("STOCKFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("PORT", 5000),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      time.Duration(getEnvAsInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		QuoteAPIURL:   getEnv("QUOTE_API_URL", "https://www.alphavantage.co/query"),
		QuoteAPIKey:   getEnv("QUOTE_API_KEY", ""),
		PriceTimeout:  time.Duration(getEnvAsInt("PRICE_TIMEOUT_MS", 3000)) * time.Millisecond,
		QuoteCacheTTL: time.Duration(getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 60)) * time.Second,
		NewsAPIURL:    getEnv("NEWS_API_URL", ""),
		NewsAPIKey:    getEnv("NEWS_API_KEY", ""),
		VideoAPIURL:   getEnv("VIDEO_API_URL", ""),
		VideoAPIKey:   getEnv("VIDEO_API_KEY", ""),
		Backup:        loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig reads the S3 backup settings. An empty bucket means disabled.
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:   getEnv("BACKUP_S3_BUCKET", ""),
		Prefix:   getEnv("BACKUP_S3_PREFIX", "stockfolio"),
		Region:   getEnv("BACKUP_S3_REGION", "us-east-1"),
		Schedule: getEnv("BACKUP_SCHEDULE", "@daily"),
	}
}
