package dbconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Postgres connection settings.
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
// An unset DB_HOST leaves Host empty, which means run without a database.
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		Driver:   getEnv("DB_DRIVER", "pgx"),
		Host:     os.Getenv("DB_HOST"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "gymhub"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// Enabled reports whether a database host is configured
func (c Config) Enabled() bool {
	return c.Host != ""
}

// DriverName maps the configured driver to its database/sql name.
// "postgres" and "pq" select lib/pq, anything else pgx.
func (c Config) DriverName() string {
	switch c.Driver {
	case "postgres", "pq":
		return "postgres"
	default:
		return "pgx"
	}
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
