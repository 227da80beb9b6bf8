package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openpress/pulse/pkg/observability"
	"github.com/openpress/pulse/pkg/store"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Redis configuration
	Redis store.Config

	// Upstream collaborators
	Matomo    MatomoConfig
	OJS       OJSConfig
	Citations CitationsConfig

	// Tracked journals as (path, id) pairs
	Journals []Journal

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// MatomoConfig holds the web-analytics API settings
type MatomoConfig struct {
	BaseURL   string
	AuthToken string
	SiteID    string
}

// OJSConfig holds the journal content API settings
type OJSConfig struct {
	BaseURL string
	APIKey  string
}

// CitationsConfig holds the citation-search API settings
type CitationsConfig struct {
	APIKey string
	// Schedule is the cron expression for the daily citation sweep.
	Schedule string
}

// Journal pairs a journal's URL path segment with its numeric site ID.
type Journal struct {
	Path string
	ID   string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Redis:         loadRedisConfig(),
		Matomo:        loadMatomoConfig(),
		OJS:           loadOJSConfig(),
		Citations:     loadCitationsConfig(),
		Journals:      parseJournals(getEnv("PULSE_JOURNALS", "")),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PULSE_HOST", "0.0.0.0"),
		Port:            getEnv("PULSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PULSE_READ_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PULSE_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: getEnvDuration("PULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() store.Config {
	cfg := store.DefaultConfig()

	if redisURL := getEnv("PULSE_REDIS_URL", ""); redisURL != "" {
		cfg.URL = redisURL
	}
	if redisPassword := getEnv("PULSE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.Password = redisPassword
	}
	if redisDB := getEnvInt("PULSE_REDIS_DB", -1); redisDB >= 0 {
		cfg.DB = redisDB
	}
	if maxRetries := getEnvInt("PULSE_REDIS_MAX_RETRIES", 0); maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	if poolSize := getEnvInt("PULSE_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.PoolSize = poolSize
	}

	return cfg
}

func loadMatomoConfig() MatomoConfig {
	return MatomoConfig{
		BaseURL:   getEnv("PULSE_MATOMO_URL", ""),
		AuthToken: getEnv("PULSE_MATOMO_TOKEN", ""),
		SiteID:    getEnv("PULSE_MATOMO_SITE_ID", "1"),
	}
}

func loadOJSConfig() OJSConfig {
	return OJSConfig{
		BaseURL: getEnv("PULSE_OJS_URL", ""),
		APIKey:  getEnv("PULSE_OJS_API_KEY", ""),
	}
}

func loadCitationsConfig() CitationsConfig {
	return CitationsConfig{
		APIKey:   getEnv("PULSE_SERPER_API_KEY", ""),
		Schedule: getEnv("PULSE_CITATIONS_SCHEDULE", "30 2 * * *"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("PULSE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("PULSE_METRICS_ENABLED", true),
	}
}

// parseJournals parses the PULSE_JOURNALS value, a comma-separated list of
// "path:id" pairs. An empty value falls back to the default pair of journals
// the service launched with.
func parseJournals(raw string) []Journal {
	if strings.TrimSpace(raw) == "" {
		return []Journal{
			{Path: "innovative-minds", ID: "1"},
			{Path: "bright-tomorrow", ID: "2"},
		}
	}

	var journals []Journal
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		j := Journal{Path: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			j.ID = strings.TrimSpace(parts[1])
		}
		if j.Path != "" {
			journals = append(journals, j)
		}
	}
	return journals
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	// Upstreams are optional; when a base URL is set its credential must be too.
	if c.Matomo.BaseURL != "" && c.Matomo.AuthToken == "" {
		return fmt.Errorf("matomo auth token is required when matomo URL is set")
	}
	if c.OJS.BaseURL != "" && c.OJS.APIKey == "" {
		return fmt.Errorf("OJS API key is required when OJS URL is set")
	}

	for _, j := range c.Journals {
		if j.ID == "" {
			return fmt.Errorf("journal %q is missing its site id", j.Path)
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
