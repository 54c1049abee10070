package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Finnhub FinnhubConfig

	// Tracker pipeline
	Tracker TrackerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey         string
	BaseURL        string
	CallsPerMinute int
}

// TrackerConfig holds pipeline configuration
type TrackerConfig struct {
	// Indices to track; config/exchanges.json overrides when present
	Indices []string

	DataDir   string
	ConfigDir string
	CacheDir  string

	// Hard cap on symbols fetched per index
	UniverseCap int

	// Screening is skipped for universes at or below this size
	ScreeningThreshold int

	// Multiplier for the market-cap estimate (close * volume * multiplier)
	// used when the true market cap is unavailable during screening.
	// Zero means unset; the screener filter file or its default applies.
	CapEstimateMultiplier float64

	// Wall-clock bound for a full refresh run
	RefreshTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "tracker"),
			User:            getEnv("DB_USER", "tracker"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Finnhub: FinnhubConfig{
			APIKey:         getEnv("FINNHUB_API_KEY", ""),
			BaseURL:        getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
			CallsPerMinute: getEnvAsInt("FINNHUB_CALLS_PER_MINUTE", 60),
		},

		// Tracker
		Tracker: TrackerConfig{
			Indices:               getEnvAsList("TRACKER_INDICES", []string{"S&P 500", "NASDAQ-100"}),
			DataDir:               getEnv("DATA_DIR", "data"),
			ConfigDir:             getEnv("CONFIG_DIR", "config"),
			CacheDir:              getEnv("CACHE_DIR", "data/cache"),
			UniverseCap:           getEnvAsInt("UNIVERSE_CAP", 100),
			ScreeningThreshold:    getEnvAsInt("SCREENING_THRESHOLD", 20),
			CapEstimateMultiplier: getEnvAsFloat("CAP_ESTIMATE_MULTIPLIER", 0),
			RefreshTimeout:        getEnvAsDuration("REFRESH_TIMEOUT", "10m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("FINNHUB_API_KEY is required")
	}

	if c.Finnhub.CallsPerMinute < 1 {
		return fmt.Errorf("FINNHUB_CALLS_PER_MINUTE must be positive")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if len(c.Tracker.Indices) == 0 {
		return fmt.Errorf("TRACKER_INDICES must name at least one index")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
