package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"

	"github.com/coopdesk/backoffice/internal/application/auth"
	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/application/view"
	"github.com/coopdesk/backoffice/internal/config"
	"github.com/coopdesk/backoffice/internal/infrastructure/export"
	httpserver "github.com/coopdesk/backoffice/internal/infrastructure/http"
	"github.com/coopdesk/backoffice/internal/infrastructure/http/handler"
	"github.com/coopdesk/backoffice/internal/infrastructure/keygen"
	"github.com/coopdesk/backoffice/internal/infrastructure/observability"
	"github.com/coopdesk/backoffice/internal/query"
	"github.com/coopdesk/backoffice/internal/storage/fs"
	"github.com/coopdesk/backoffice/internal/storage/gcs"
	sqlstorage "github.com/coopdesk/backoffice/internal/storage/sql"
)

func main() {
	if err := run(); err != nil {
		// slog may not be initialised if config fails
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}

	// Root context, cancelled on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Exporter endpoints come from OTEL_* env vars
	telemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
		LogLevel:    cfg.Observability.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	slog.SetDefault(telemetry.Logger)
	// Registered first so it runs last, after the stores are closed.
	defer shutdownWithTimeout(newCleanup(closer{"telemetry", telemetry.Shutdown}))

	store, err := sqlstorage.NewStore(ctx, sqlstorage.DBConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	slog.InfoContext(ctx, "storage initialized", "driver", cfg.Database.Driver, "dsn", maskPassword(cfg.Database.Driver, cfg.Database.DSN))

	viewStore, closeViews, err := newViewStore(ctx, cfg.Views)
	if err != nil {
		store.Close()
		return err
	}

	defer shutdownWithTimeout(newCleanup(
		closer{"view store", func(context.Context) error { return closeViews() }},
		closer{"member store", func(context.Context) error { return store.Close() }},
	))

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
		Leeway:   cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	slog.InfoContext(ctx, "bearer token authentication enabled",
		"issuer", cfg.Auth.Issuer,
		"secret_fingerprint", keygen.Fingerprint([]byte(cfg.Auth.JWTSecret)))

	members := member.NewService(store, map[query.ExportFormat]member.Exporter{
		query.FormatXLSX: export.NewXLSX(),
		query.FormatPDF:  export.NewPDF(),
	}, member.Config{
		DefaultPageSize: cfg.Members.DefaultPageSize,
		MaxPageSize:     cfg.Members.MaxPageSize,
		MaxExportRows:   cfg.Members.MaxExportRows,
	})
	views := view.NewService(viewStore)

	server := httpserver.NewAPIServer(handler.NewRouter(members, views), authenticator, httpserver.ServerConfig{
		Host:              cfg.HTTP.Host,
		Port:              cfg.HTTP.Port,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
	})

	slog.InfoContext(ctx, "starting backoffice service", "views", cfg.Views.Store)
	if err := server.Run(ctx, cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	slog.InfoContext(ctx, "shutdown complete")
	return nil
}

// newViewStore opens the configured saved-view backend. The returned close
// func is always non-nil.
func newViewStore(ctx context.Context, cfg config.ViewStoreConfig) (view.Store, func() error, error) {
	switch cfg.Store {
	case config.ViewStoreGCS:
		store, err := gcs.NewStore(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gcs view store: %w", err)
		}
		slog.InfoContext(ctx, "view store initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
		return store, store.Close, nil
	default:
		store, err := fs.NewStore(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create fs view store: %w", err)
		}
		slog.InfoContext(ctx, "view store initialized", "dir", cfg.Dir)
		return store, func() error { return nil }, nil
	}
}

// keywordPassword matches password settings of a keyword/value DSN, quoted or bare.
var keywordPassword = regexp.MustCompile(`(\b\w*password\s*=\s*)('(?:[^'\\]|\\.)*'|[^\s]+)`)

// maskPassword masks the password in a connection string for logging.
// File paths pass through unchanged.
func maskPassword(driver, connStr string) string {
	if driver == config.DriverMySQL {
		dsn, err := mysql.ParseDSN(connStr)
		if err != nil {
			return "[REDACTED]"
		}
		if dsn.Passwd != "" {
			dsn.Passwd = "xxxxxx"
		}
		return dsn.FormatDSN()
	}

	if driver == config.DriverPostgres && !strings.Contains(connStr, "://") {
		return keywordPassword.ReplaceAllString(connStr, "${1}xxxxxx")
	}

	u, err := url.Parse(connStr)
	if err != nil {
		// If parsing fails, fall back to full redaction to be safe
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
