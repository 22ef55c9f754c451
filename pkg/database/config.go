// Package database provides database access functionality for the risk analysis system.
package database

import (
	"fmt"
	"time"
)

// TLSConfig holds the TLS settings applied to the Postgres DSN.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Config defines what the database package needs to open a connection pool.
type Config struct {
	Driver          string
	DSN             string
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	TLS *TLSConfig

	QueryTimeout   time.Duration // Default: 30s
	ConnectTimeout time.Duration // Default: 10s

	AutoMigrate          bool
	MigrationsPath       string
	FailOnMigrationError bool
}

// NewConfig creates config with sensible defaults
func NewConfig() *Config {
	return &Config{
		Driver:          "postgres",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		ConnectTimeout:  10 * time.Second,
		MigrationsPath:  "migrations/sql",
		SSLMode:         "disable",
		Port:            5432,
	}
}

// GetDSN returns the connection string for the database
func (c *Config) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return buildPostgresDSN(c)
}

// buildPostgresDSN constructs a PostgreSQL connection string
func buildPostgresDSN(c *Config) string {
	if c.Host == "" {
		c.Host = "localhost"
	}

	dsn := "postgres://"
	if c.Username != "" {
		dsn += c.Username
		if c.Password != "" {
			dsn += ":" + c.Password
		}
		dsn += "@"
	}
	dsn += fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
	dsn += "?sslmode=" + c.SSLMode

	if c.TLS != nil && c.TLS.Enabled && c.SSLMode != "disable" {
		if c.TLS.CertFile != "" {
			dsn += "&sslcert=" + c.TLS.CertFile
		}
		if c.TLS.KeyFile != "" {
			dsn += "&sslkey=" + c.TLS.KeyFile
		}
		if c.TLS.CAFile != "" {
			dsn += "&sslrootcert=" + c.TLS.CAFile
		}
	}

	return dsn
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	if c.GetDSN() == "" && (c.Host == "" || c.Database == "") {
		return ErrInvalidDatabaseConfig
	}
	return nil
}
