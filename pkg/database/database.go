package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/riskguard/analyzer/pkg/database/migration"

	// Import PostgreSQL driver
	_ "github.com/lib/pq"
)

// Common errors
var (
	ErrInvalidDatabaseConfig = errors.New("invalid database configuration: missing required fields")
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateKey          = errors.New("duplicate key violation")
)

// sanitizeDSN removes sensitive information from a DSN for safe logging
func sanitizeDSN(dsn string) string {
	if strings.Contains(dsn, "password=") {
		parts := strings.Split(dsn, " ")
		var sanitized []string
		for _, part := range parts {
			if strings.HasPrefix(part, "password=") {
				sanitized = append(sanitized, "password=***")
			} else {
				sanitized = append(sanitized, part)
			}
		}
		return strings.Join(sanitized, " ")
	}
	if strings.Contains(dsn, "@") {
		if idx := strings.Index(dsn, "://"); idx != -1 {
			if atIdx := strings.Index(dsn[idx:], "@"); atIdx != -1 {
				prefix := dsn[:idx+3]
				suffix := dsn[idx+atIdx:]
				return prefix + "***:***" + suffix
			}
		}
	}
	return dsn
}

// Database represents the database access layer
type Database struct {
	db     *sqlx.DB
	config Config
}

// NewDatabase opens a connection pool and, if configured, applies pending migrations.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := cfg.GetDSN()
	log.Printf("connecting to database: %s", sanitizeDSN(dsn))

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	database := &Database{db: db, config: cfg}

	if cfg.AutoMigrate {
		mgr, err := migration.NewManager(db, migration.Config{
			MigrationsPath:   cfg.MigrationsPath,
			MigrationTimeout: cfg.QueryTimeout,
		}, cfg.Driver)
		if err != nil {
			if closeErr := db.Close(); closeErr != nil {
				log.Printf("failed to close database after migration setup error: %v", closeErr)
			}
			return nil, fmt.Errorf("failed to create migration manager: %w", err)
		}
		if err := mgr.RunMigrations(ctx); err != nil {
			if cfg.FailOnMigrationError {
				if closeErr := db.Close(); closeErr != nil {
					log.Printf("failed to close database after migration error: %v", closeErr)
				}
				return nil, fmt.Errorf("database migration failed: %w", err)
			}
			log.Printf("warning: database migration had errors but continuing: %v", err)
		}
		_ = mgr.Close()
	}

	return database, nil
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if d == nil || d.db == nil {
		return errors.New("database: transaction called on nil connection")
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("failed to rollback transaction: %v (original error: %v)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	return d.db.Ping()
}

// DB returns the underlying sqlx.DB instance
func (d *Database) DB() *sqlx.DB {
	return d.db
}

// NewDatabaseWithConnection creates a new Database instance with an existing connection
func NewDatabaseWithConnection(db *sqlx.DB) *Database {
	return &Database{db: db}
}
