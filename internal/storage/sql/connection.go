package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/coopdesk/backoffice/internal/storage/sql/repository"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Driver names accepted in DBConfig.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// DBConfig holds database connection configuration.
type DBConfig struct {
	Driver          string        // postgres (default), sqlite or mysql
	DSN             string        // Connection string, SQLite file path or MySQL DSN
	MaxOpenConns    int           // Maximum open connections (default: 25, SQLite: 1)
	MaxIdleConns    int           // Maximum idle connections (default: 5)
	ConnMaxLifetime time.Duration // Connection max lifetime (default: 5min)
	ConnMaxIdleTime time.Duration // Connection max idle time (default: 1min)
}

// NewStore opens the database, runs migrations and returns the member store.
func NewStore(ctx context.Context, cfg DBConfig) (*repository.Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}

	var (
		dialect      repository.Dialect
		driverName   string
		gooseDialect goose.Dialect
	)
	switch cfg.Driver {
	case DriverPostgres:
		dialect, driverName, gooseDialect = repository.Postgres, "pgx", goose.DialectPostgres
	case DriverSQLite:
		dialect, driverName, gooseDialect = repository.SQLite, "sqlite", goose.DialectSQLite3
	case DriverMySQL:
		dialect, driverName, gooseDialect = repository.MySQL, "mysql", goose.DialectMySQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool with defaults if not set
	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
		if cfg.Driver == DriverSQLite {
			// SQLite serializes writers; one connection avoids SQLITE_BUSY.
			maxOpenConns = 1
		}
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 1 * time.Minute
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db, gooseDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repository.NewStore(db, dialect), nil
}

// runMigrations applies the embedded migrations with a goose provider.
func runMigrations(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// NewPostgresStore creates a PostgreSQL store with default connection pool settings.
func NewPostgresStore(ctx context.Context, connString string) (*repository.Store, error) {
	return NewStore(ctx, DBConfig{
		Driver: DriverPostgres,
		DSN:    connString,
	})
}

// NewMySQLStore creates a MySQL store from a go-sql-driver DSN such as
// user:pass@tcp(host:3306)/backoffice.
func NewMySQLStore(ctx context.Context, dsn string) (*repository.Store, error) {
	return NewStore(ctx, DBConfig{
		Driver: DriverMySQL,
		DSN:    dsn,
	})
}

// NewSQLiteStore creates a store backed by the SQLite file at path.
func NewSQLiteStore(ctx context.Context, path string) (*repository.Store, error) {
	return NewStore(ctx, DBConfig{
		Driver: DriverSQLite,
		DSN:    path,
	})
}
