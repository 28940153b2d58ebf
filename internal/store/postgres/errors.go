package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/formforge/formforge/internal/errs"
)

// PostgreSQL SQLSTATE codes relevant to this store.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection = "08"    // connection exception class
	pgErrUniqueViol   = "23505" // unique_violation
)

func notFoundf(format string, args ...any) error {
	return errs.Newf(errs.ErrKindNotFound, format, args...)
}

// mapError converts a pgx error into a store error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassConnection):
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		case pgErr.Code == pgErrUniqueViol:
			return errs.Wrap(errs.ErrKindDuplicate, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
