// Package postgres is the PostgreSQL implementation of the schema and
// entry stores, backed by pgxpool. It is safe for concurrent use by
// multiple goroutines.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/schema"
)

// Config holds the connection settings for a Store.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32

	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Store implements schema.Store and entries.Store against PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ schema.Store  = (*Store)(nil)
	_ entries.Store = (*Store)(nil)
)

// New connects using cfg and returns a Store. It pings the database to
// validate the connection before returning.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	s := &Store{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (s *Store) Close() {
	s.pool.Close()
}
