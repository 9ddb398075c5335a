package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DriverSQLite selects the embedded SQLite store (default).
	DriverSQLite = "sqlite3"
	// DriverPostgres selects a PostgreSQL server.
	DriverPostgres = "postgres"

	defaultWriteTimeout = 5 * time.Second
	defaultSQLitePath   = "data/bot_data.db"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string        `yaml:"driver" envconfig:"DB_DRIVER" validate:"omitempty,oneof=sqlite3 sqlite postgres"`
	Path           string        `yaml:"path" envconfig:"DB_PATH"`
	Host           string        `yaml:"host" envconfig:"DB_HOST"`
	Port           string        `yaml:"port" envconfig:"DB_PORT"`
	User           string        `yaml:"user" envconfig:"DB_USER"`
	Password       string        `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string        `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string        `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int           `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS" validate:"gte=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"DB_WRITE_TIMEOUT" validate:"gte=0"`
}

// Normalize fills defaults and checks driver specific requirements.
func (c *Config) Normalize() error {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	switch driver {
	case "", "sqlite", DriverSQLite:
		c.Driver = DriverSQLite
		if strings.TrimSpace(c.Path) == "" {
			c.Path = defaultSQLitePath
		}
		// SQLite is used as a single-writer store.
		c.MaxConnections = 1
	case DriverPostgres:
		c.Driver = DriverPostgres
		if c.Host == "" || c.Name == "" || c.User == "" {
			return fmt.Errorf("database.host, database.name and database.user are required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: sqlite3, postgres", c.Driver)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	return nil
}

// DSN returns the driver specific data source name used by database/sql.
func (c Config) DSN() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
		)
	}
	if c.Path == ":memory:" {
		return "file::memory:?_busy_timeout=5000&_txlock=immediate"
	}
	return "file:" + c.Path + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate"
}

// MigrateURL returns the URL form understood by golang-migrate (postgres only).
func (c Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Target describes the database for logs without exposing credentials.
func (c Config) Target() string {
	if c.Driver == DriverPostgres {
		return c.Host + ":" + c.Port + "/" + c.Name
	}
	return c.Path
}
