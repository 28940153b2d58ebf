// Package sqlstore implements the schema and entry stores on database/sql
// with ?-style placeholders. It serves the SQLite and MySQL backends; the
// PostgreSQL backend has its own pgx-based store.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/schema"
)

// Store implements schema.Store and entries.Store over a *sql.DB.
type Store struct {
	db     *sql.DB
	driver string
}

var (
	_ schema.Store  = (*Store)(nil)
	_ entries.Store = (*Store)(nil)
)

// Open connects using the named database/sql driver ("sqlite" or "mysql")
// and pings before returning. The caller is responsible for importing the
// driver package.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open database", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// nullableTime adapts *time.Time to a scannable/storable value.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
