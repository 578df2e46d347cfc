// Package store is the controller's transactional repository over Postgres.
// Every mutation runs inside a short transaction; reads may use a
// short-lived pool snapshot. The Store never leaks *pgx types past its own
// package boundary (spec.md §4.1).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarrarian/dashboard/internal/config"
	"github.com/librarrarian/dashboard/internal/log"
)

// Store is the controller's repository. It owns the connection pool and is
// safe for concurrent use by HTTP handlers and background tasks alike.
type Store struct {
	pool *pgxpool.Pool
}

// Open acquires a connection pool per cfg and verifies connectivity.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("store: parse pool config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping failed: %v", ErrUnavailable, err)
	}

	storeLogger := log.WithComponent("store")
	storeLogger.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connected to database")
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool to the migrator only; business code must
// go through Store's typed methods.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping checks that the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
