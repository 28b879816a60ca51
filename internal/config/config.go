package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config contains runtime configuration required by the service.
// It is built once in main and handed to each component's constructor.
type Config struct {
	Env           string
	Port          string
	WebhookSecret string // empty disables signature verification
	Store         StoreConfig
	Backup        BackupConfig
	Monitor       MonitorConfig
	OTel          OTelConfig
}

type StoreConfig struct {
	Driver   string
	DBURL    string
	Table    string
	MaxConns int32
	MinConns int32
}

type BackupConfig struct {
	Dir       string
	Retention int
}

type MonitorConfig struct {
	Interval time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Load reads configuration from environment variables.
// In development a local .env file is loaded first when present.
func Load() (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:           getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		WebhookSecret: strings.TrimSpace(os.Getenv("GITHUB_WEBHOOK_SECRET")),
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			DBURL:  strings.TrimSpace(os.Getenv("DB_URL")),
			Table:  getEnv("EVENTS_TABLE", "events"),
		},
		Backup: BackupConfig{
			Dir: getEnv("BACKUP_DIR", "backups"),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "repo-activity-service"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}

	var err error
	if cfg.Store.MaxConns, err = getEnvInt32("DB_MAX_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.Store.MinConns, err = getEnvInt32("DB_MIN_CONNS", 2); err != nil {
		return Config{}, err
	}
	if cfg.Backup.Retention, err = getEnvInt("BACKUP_RETENTION", 7); err != nil {
		return Config{}, err
	}
	if cfg.Monitor.Interval, err = getEnvDuration("MONITOR_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}

	switch cfg.Store.Driver {
	case StoreDriverPostgres:
		if cfg.Store.DBURL == "" {
			return Config{}, errors.New("DB_URL required")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	if cfg.Store.Table == "" {
		return Config{}, errors.New("EVENTS_TABLE must not be empty")
	}
	if cfg.Backup.Retention < 1 {
		return Config{}, errors.New("BACKUP_RETENTION must be at least 1")
	}
	if cfg.Monitor.Interval <= 0 {
		return Config{}, errors.New("MONITOR_INTERVAL must be positive")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SignatureEnabled reports whether webhook requests must be signed.
func (c Config) SignatureEnabled() bool {
	return c.WebhookSecret != ""
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return i, nil
}

func getEnvInt32(key string, fallback int32) (int32, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return int32(i), nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 5m", key)
	}
	return d, nil
}
