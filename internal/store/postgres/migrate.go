package postgres

import "context"

// Migrate creates the store's tables and indexes if they do not exist.
// Statements are idempotent, so calling it at every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(50) NOT NULL,
			slug VARCHAR(100) NOT NULL UNIQUE,
			intro TEXT NOT NULL DEFAULT '',
			button_text VARCHAR(50) NOT NULL DEFAULT '',
			response TEXT NOT NULL DEFAULT '',
			status SMALLINT NOT NULL DEFAULT 1,
			publish_date TIMESTAMPTZ,
			expiry_date TIMESTAMPTZ,
			login_required BOOLEAN NOT NULL DEFAULT FALSE,
			send_email BOOLEAN NOT NULL DEFAULT FALSE,
			email_from VARCHAR(254) NOT NULL DEFAULT '',
			email_copies VARCHAR(200) NOT NULL DEFAULT '',
			email_subject VARCHAR(200) NOT NULL DEFAULT '',
			email_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS fields (
			id BIGSERIAL PRIMARY KEY,
			form_id BIGINT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
			label VARCHAR(200) NOT NULL,
			slug VARCHAR(100) NOT NULL,
			field_type INTEGER NOT NULL,
			required BOOLEAN NOT NULL DEFAULT TRUE,
			visible BOOLEAN NOT NULL DEFAULT TRUE,
			choices TEXT NOT NULL DEFAULT '',
			default_value TEXT NOT NULL DEFAULT '',
			placeholder_text TEXT NOT NULL DEFAULT '',
			help_text TEXT NOT NULL DEFAULT '',
			ord INTEGER NOT NULL DEFAULT 0,
			UNIQUE (form_id, slug)
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id BIGSERIAL PRIMARY KEY,
			form_id BIGINT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
			entry_time TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS entries_form_time_idx
			ON entries (form_id, entry_time)`,
		`CREATE TABLE IF NOT EXISTS field_values (
			id BIGSERIAL PRIMARY KEY,
			entry_id BIGINT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
			field_id BIGINT NOT NULL,
			value VARCHAR(2000) NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS field_values_entry_idx
			ON field_values (entry_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return mapError(err, "migration failed")
		}
	}
	return nil
}
