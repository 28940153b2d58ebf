package sqlstore

import (
	"context"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
)

// Migrate creates the store's tables and indexes if they do not exist.
// The primary key clause is the only dialect difference between SQLite
// and MySQL, so it is substituted per driver.
func (s *Store) Migrate(ctx context.Context) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ine := "IF NOT EXISTS "
	if s.driver == "mysql" {
		pk = "BIGINT PRIMARY KEY AUTO_INCREMENT"
		ine = "" // no CREATE INDEX IF NOT EXISTS in MySQL
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id ` + pk + `,
			title VARCHAR(50) NOT NULL,
			slug VARCHAR(100) NOT NULL UNIQUE,
			intro TEXT NOT NULL,
			button_text VARCHAR(50) NOT NULL,
			response TEXT NOT NULL,
			status SMALLINT NOT NULL,
			publish_date DATETIME,
			expiry_date DATETIME,
			login_required BOOLEAN NOT NULL,
			send_email BOOLEAN NOT NULL,
			email_from VARCHAR(254) NOT NULL,
			email_copies VARCHAR(200) NOT NULL,
			email_subject VARCHAR(200) NOT NULL,
			email_message TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fields (
			id ` + pk + `,
			form_id BIGINT NOT NULL,
			label VARCHAR(200) NOT NULL,
			slug VARCHAR(100) NOT NULL,
			field_type INTEGER NOT NULL,
			required BOOLEAN NOT NULL,
			visible BOOLEAN NOT NULL,
			choices TEXT NOT NULL,
			default_value TEXT NOT NULL,
			placeholder_text TEXT NOT NULL,
			help_text TEXT NOT NULL,
			ord INTEGER NOT NULL,
			UNIQUE (form_id, slug)
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id ` + pk + `,
			form_id BIGINT NOT NULL,
			entry_time DATETIME NOT NULL
		)`,
		`CREATE INDEX ` + ine + `entries_form_time_idx
			ON entries (form_id, entry_time)`,
		`CREATE TABLE IF NOT EXISTS field_values (
			id ` + pk + `,
			entry_id BIGINT NOT NULL,
			field_id BIGINT NOT NULL,
			value VARCHAR(2000) NOT NULL
		)`,
		`CREATE INDEX ` + ine + `field_values_entry_idx
			ON field_values (entry_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if indexExists(err) {
				continue
			}
			return mapError(err, "migration failed")
		}
	}
	return nil
}

// indexExists recognizes the duplicate-index errors re-running the index
// statements produces; MySQL has no CREATE INDEX IF NOT EXISTS.
func indexExists(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1061 // duplicate key name
	}
	return false
}
