package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted in database.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Updater holds all configuration for the update status service.
type Updater struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`

	// debug, info, warn or error
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig selects the storage backend and holds its connection parameters.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`

	// PostgreSQL
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// SQLite
	SQLitePath string `yaml:"sqlite_path"`
}

// DSN returns the PostgreSQL connection string.
// User and password are escaped, so they may contain any character.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// HTTPConfig configures the status/metrics listener.
type HTTPConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// Addr returns host:port for net/http.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.BindAddress, h.Port)
}

// DefaultUpdater returns Updater config with sensible defaults.
func DefaultUpdater() Updater {
	return Updater{
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			Host:       "127.0.0.1",
			Port:       5432,
			User:       "updstatus",
			Password:   "updstatus",
			DBName:     "updstatus",
			SSLMode:    "disable",
			SQLitePath: "data/updstatus.db",
		},
		HTTP: HTTPConfig{
			BindAddress: "127.0.0.1",
			Port:        7879,
		},
		LogLevel: "info",
	}
}

// LoadUpdater loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadUpdater(path string) (Updater, error) {
	cfg := DefaultUpdater()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c Updater) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("postgres driver requires host and dbname")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Updater) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
