package sqlstore

import (
	"database/sql"
	"errors"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/formforge/formforge/internal/errs"
)

// MySQL error numbers this store reacts to.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	myErrDuplicateEntry  = 1062
	myErrAccessDenied    = 1045
	myErrConnRefused     = 2003
	myErrUnknownDatabase = 1049
)

func notFoundf(format string, args ...any) error {
	return errs.Newf(errs.ErrKindNotFound, format, args...)
}

// mapError converts a database/sql or driver error into a store error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case myErrDuplicateEntry:
			return errs.Wrap(errs.ErrKindDuplicate, msg, err)
		case myErrAccessDenied, myErrConnRefused, myErrUnknownDatabase:
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		}
	}

	// SQLite constraint failures surface as plain text.
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errs.Wrap(errs.ErrKindDuplicate, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
