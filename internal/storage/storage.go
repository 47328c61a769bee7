// Package storage opens the record store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/store"
	"github.com/JonMunkholm/contacts/internal/store/memstore"
	"github.com/JonMunkholm/contacts/internal/store/pgstore"
)

// Handle is an open record store. Pool is nil for the memory driver.
type Handle struct {
	Store store.Store
	Pool  *pgxpool.Pool
}

// Close releases the connection pool, if any.
func (h *Handle) Close() {
	if h.Pool != nil {
		h.Pool.Close()
	}
}

// Open connects to the configured driver. With the postgres driver and
// migrate set, pending migrations are applied before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (*Handle, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return &Handle{Store: memstore.New()}, nil
	case config.DriverPostgres:
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("migrations applied")
	}
	return &Handle{Store: pgstore.New(pool), Pool: pool}, nil
}

// Connect opens and pings a PostgreSQL pool sized from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "name", databaseName(cfg.URL))
	return pool, nil
}

// databaseName extracts the database name for logging without exposing
// credentials.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
