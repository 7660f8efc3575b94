package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by the loader.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures file and environment driven configuration for the
// planner service.
type Config struct {
	// StorageDriver selects the persistence backend: "sqlite" or "postgres".
	StorageDriver string `yaml:"storage_driver"`

	// SQLiteDSN is the database path or DSN when StorageDriver is "sqlite".
	SQLiteDSN string `yaml:"sqlite_dsn"`

	// PostgresURL is the connection string when StorageDriver is "postgres".
	PostgresURL string `yaml:"postgres_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CalendarName labels exported iCalendar documents.
	CalendarName string `yaml:"calendar_name"`
}

// Load reads configuration from an optional YAML file at path, then applies
// PLANNER_* environment overrides on top. An empty path or a missing file
// falls back to defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Config{
		StorageDriver: DriverSQLite,
		SQLiteDSN:     "file:planner.db",
		LogLevel:      "info",
		CalendarName:  "Event Planner",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// fall through to env overrides
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	invalid := make([]string, 0, 2)
	switch cfg.StorageDriver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.SQLiteDSN) == "" {
			invalid = append(invalid, "sqlite_dsn")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresURL) == "" {
			invalid = append(invalid, "postgres_url")
		}
	default:
		invalid = append(invalid, "storage_driver")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "log_level")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PLANNER_STORAGE_DRIVER")); v != "" {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("PLANNER_SQLITE_DSN")); v != "" {
		cfg.SQLiteDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANNER_POSTGRES_URL")); v != "" {
		cfg.PostgresURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANNER_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("PLANNER_CALENDAR_NAME")); v != "" {
		cfg.CalendarName = v
	}
}
