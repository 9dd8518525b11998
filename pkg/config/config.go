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
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Reconciliation run
	Recon ReconConfig

	// Discrepancy delivery
	Notify NotifyConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
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

// ReconConfig holds reconciliation run settings
type ReconConfig struct {
	ReportsFile  string        // YAML report configuration
	QueryTimeout time.Duration // per fetch
	RunDeadline  time.Duration // whole run
	FetchWorkers int
	Schedule     string // cron expression (with seconds)
	CloseTime    string // previous close, HH:MM:SS
	OpenTime     string // current open, HH:MM:SS
	Timezone     string // IANA zone of the run date and the schedule
}

// Location returns the configured zone. Load has already checked that it
// resolves; an unset zone means the process zone.
func (r ReconConfig) Location() *time.Location {
	if r.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NotifyConfig holds discrepancy sink configuration
type NotifyConfig struct {
	Sinks          []string // console, webhook, xlsx, ws
	WebhookURL     string
	WebhookRPS     float64
	SpreadsheetDir string
	Retention      time.Duration // xlsx workbooks older than this are pruned
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "lzdb"),
			User:            getEnv("DB_USER", "dev"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
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

		Recon: ReconConfig{
			ReportsFile:  getEnv("RECON_REPORTS_FILE", "config/reports.yaml"),
			QueryTimeout: getEnvAsDuration("QUERY_TIMEOUT", "30s"),
			RunDeadline:  getEnvAsDuration("RUN_DEADLINE", "5m"),
			FetchWorkers: getEnvAsInt("FETCH_WORKERS", 4),
			Schedule:     getEnv("RECON_SCHEDULE", "0 30 8 * * 1-5"),
			CloseTime:    getEnv("RECON_CLOSE_TIME", "19:00:00"),
			OpenTime:     getEnv("RECON_OPEN_TIME", "08:00:00"),
			Timezone:     getEnv("RECON_TIMEZONE", "Local"),
		},

		Notify: NotifyConfig{
			Sinks:          getEnvAsList("NOTIFY_SINKS", "console"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookRPS:     getEnvAsFloat("NOTIFY_WEBHOOK_RPS", 2),
			SpreadsheetDir: getEnv("NOTIFY_XLSX_DIR", "reports"),
			Retention:      getEnvAsDuration("NOTIFY_XLSX_RETENTION", "720h"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.Database.URL == "" && cfg.Database.Password != "" {
		cfg.Database.URL = cfg.Database.ConnString()
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ConnString builds a postgres URL from the discrete DB_* settings
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL (or DB_PASSWORD) is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Recon.FetchWorkers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be >= 1")
	}

	for _, t := range []string{c.Recon.CloseTime, c.Recon.OpenTime} {
		if _, err := time.Parse(time.TimeOnly, t); err != nil {
			return fmt.Errorf("invalid time of day %q: want HH:MM:SS", t)
		}
	}

	if _, err := time.LoadLocation(c.Recon.Timezone); err != nil {
		return fmt.Errorf("invalid RECON_TIMEZONE %q: %w", c.Recon.Timezone, err)
	}

	for _, s := range c.Notify.Sinks {
		switch s {
		case "console", "ws", "xlsx":
		case "webhook":
			if c.Notify.WebhookURL == "" {
				return fmt.Errorf("NOTIFY_WEBHOOK_URL is required for the webhook sink")
			}
		default:
			return fmt.Errorf("unknown notify sink %q", s)
		}
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
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

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
