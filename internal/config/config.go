// Package config provides configuration management for osintgraph.
// Deployment settings are loaded from environment variables with the
// OSINTGRAPH_ prefix; correlation tuning (thresholds, time windows, scoring
// weights) lives in CorrelationConfig, which can additionally be overlaid
// from a YAML file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration settings for the osintgraph binaries.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Security    SecurityConfig
	Backup      BackupConfig
	Correlation CorrelationConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port          int     // Server port (default: 6464)
	Host          string  // Server host (default: 127.0.0.1)
	RateLimit     float64 // Sustained requests per second (default: 10)
	RateBurst     int     // Burst size (default: 20)
	MaxBodyBytes  int64   // Maximum request body for findings uploads (default: 8 MiB)
	AllowedOrigin string  // Extra WebSocket origin allowed besides localhost
}

// StorageConfig contains snapshot persistence configuration.
type StorageConfig struct {
	StorageEngine string // Snapshot backend: file, sqlite, postgres (default: file)
	DataPath      string // Directory for file/sqlite backends (default: ./data)
	PostgresDSN   string // Connection string for the postgres backend
	SnapshotName  string // Snapshot restored at startup and saved on shutdown (default: current)
	InboxPath     string // Directory watched for findings files; empty disables the inbox
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// BackupConfig contains state backup configuration.
type BackupConfig struct {
	BackupEnabled          bool   // Enable automatic backups (default: false)
	BackupInterval         string // Backup interval duration (default: 1h)
	BackupPath             string // Path to backup directory (default: ./backups)
	BackupVerify           bool   // Verify backups after creation (default: true)
	BackupRetentionHourly  int    // Number of hourly backups to keep (default: 24)
	BackupRetentionDaily   int    // Number of daily backups to keep (default: 7)
	BackupRetentionWeekly  int    // Number of weekly backups to keep (default: 4)
	BackupRetentionMonthly int    // Number of monthly backups to keep (default: 12)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. If OSINTGRAPH_CORRELATION_CONFIG names a YAML file it is overlaid
// onto the correlation defaults. The resulting correlation settings are
// validated; an out-of-range value is an error, never silently replaced.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()

	if path := getEnv("OSINTGRAPH_CORRELATION_CONFIG", ""); path != "" {
		corr, err := LoadCorrelationConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Correlation = *corr
	}

	if err := cfg.Correlation.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	corr := DefaultCorrelationConfig()
	corr.FuzzyThreshold = getEnvFloat("OSINTGRAPH_FUZZY_THRESHOLD", corr.FuzzyThreshold)
	corr.CreationWindow = getEnvDuration("OSINTGRAPH_CREATION_WINDOW", corr.CreationWindow)
	corr.ActivityWindow = getEnvDuration("OSINTGRAPH_ACTIVITY_WINDOW", corr.ActivityWindow)
	corr.ClusterMinConfidence = getEnvFloat("OSINTGRAPH_CLUSTER_MIN_CONFIDENCE", corr.ClusterMinConfidence)

	return &Config{
		Server: ServerConfig{
			Port:          getEnvInt("OSINTGRAPH_PORT", 6464),
			Host:          getEnv("OSINTGRAPH_HOST", "127.0.0.1"),
			RateLimit:     getEnvFloat("OSINTGRAPH_RATE_LIMIT", 10.0),
			RateBurst:     getEnvInt("OSINTGRAPH_RATE_BURST", 20),
			MaxBodyBytes:  int64(getEnvInt("OSINTGRAPH_MAX_BODY_BYTES", 8<<20)),
			AllowedOrigin: getEnv("OSINTGRAPH_ALLOWED_ORIGIN", ""),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("OSINTGRAPH_STORAGE_ENGINE", "file"),
			DataPath:      getEnv("OSINTGRAPH_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("OSINTGRAPH_POSTGRES_DSN", ""),
			SnapshotName:  getEnv("OSINTGRAPH_SNAPSHOT_NAME", "current"),
			InboxPath:     getEnv("OSINTGRAPH_INBOX_PATH", ""),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("OSINTGRAPH_SECURITY_MODE", "development"),
			APIToken:     getEnv("OSINTGRAPH_API_TOKEN", ""),
		},
		Backup: BackupConfig{
			BackupEnabled:          getEnvBool("OSINTGRAPH_BACKUP_ENABLED", false),
			BackupInterval:         getEnv("OSINTGRAPH_BACKUP_INTERVAL", "1h"),
			BackupPath:             getEnv("OSINTGRAPH_BACKUP_PATH", "./backups"),
			BackupVerify:           getEnvBool("OSINTGRAPH_BACKUP_VERIFY", true),
			BackupRetentionHourly:  getEnvInt("OSINTGRAPH_BACKUP_RETENTION_HOURLY", 24),
			BackupRetentionDaily:   getEnvInt("OSINTGRAPH_BACKUP_RETENTION_DAILY", 7),
			BackupRetentionWeekly:  getEnvInt("OSINTGRAPH_BACKUP_RETENTION_WEEKLY", 4),
			BackupRetentionMonthly: getEnvInt("OSINTGRAPH_BACKUP_RETENTION_MONTHLY", 12),
		},
		Correlation: corr,
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable. Besides
// time.ParseDuration syntax a plain "<n>d" day count is accepted.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}

// ParseDuration parses a Go duration string, additionally accepting a whole
// number of days such as "30d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
