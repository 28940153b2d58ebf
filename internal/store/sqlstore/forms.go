package sqlstore

import (
	"context"
	"database/sql"

	"github.com/formforge/formforge/internal/schema"
)

const formColumns = `id, title, slug, intro, button_text, response, status,
	publish_date, expiry_date, login_required,
	send_email, email_from, email_copies, email_subject, email_message`

const fieldColumns = `id, form_id, label, slug, field_type, required, visible,
	choices, default_value, placeholder_text, help_text, ord`

// CreateForm inserts f, assigning its ID and a slug unique across forms.
func (s *Store) CreateForm(ctx context.Context, f *schema.Form) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback()

	slug, err := uniqueSlug(ctx, tx, schema.Slugify(f.Title),
		`SELECT EXISTS (SELECT 1 FROM forms WHERE slug = ?)`)
	if err != nil {
		return err
	}
	f.Slug = slug

	res, err := tx.ExecContext(ctx, `
		INSERT INTO forms (title, slug, intro, button_text, response, status,
			publish_date, expiry_date, login_required,
			send_email, email_from, email_copies, email_subject, email_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Title, f.Slug, f.Intro, f.ButtonText, f.Response, f.Status,
		nullableTime(f.PublishDate), nullableTime(f.ExpiryDate), f.LoginRequired,
		f.SendEmail, f.EmailFrom, f.EmailCopies, f.EmailSubject, f.EmailMessage,
	)
	if err != nil {
		return mapError(err, "insert form failed")
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return mapError(err, "insert form failed")
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// UpdateForm rewrites f's mutable columns. The slug is immutable after
// create so stored entry URLs stay valid.
func (s *Store) UpdateForm(ctx context.Context, f *schema.Form) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE forms SET title = ?, intro = ?, button_text = ?, response = ?,
			status = ?, publish_date = ?, expiry_date = ?, login_required = ?,
			send_email = ?, email_from = ?, email_copies = ?,
			email_subject = ?, email_message = ?
		WHERE id = ?`,
		f.Title, f.Intro, f.ButtonText, f.Response,
		f.Status, nullableTime(f.PublishDate), nullableTime(f.ExpiryDate), f.LoginRequired,
		f.SendEmail, f.EmailFrom, f.EmailCopies, f.EmailSubject, f.EmailMessage,
		f.ID,
	)
	if err != nil {
		return mapError(err, "update form failed")
	}
	return requireAffected(res, "form %d", f.ID)
}

// DeleteForm removes the form with its fields, entries, and values. The
// dependents are removed explicitly so the store does not depend on
// foreign key enforcement being enabled.
func (s *Store) DeleteForm(ctx context.Context, formID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM field_values WHERE entry_id IN (
			SELECT id FROM entries WHERE form_id = ?)`, formID)
	if err != nil {
		return mapError(err, "delete values failed")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE form_id = ?`, formID); err != nil {
		return mapError(err, "delete entries failed")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE form_id = ?`, formID); err != nil {
		return mapError(err, "delete fields failed")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, formID)
	if err != nil {
		return mapError(err, "delete form failed")
	}
	if err := requireAffected(res, "form %d", formID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (s *Store) GetForm(ctx context.Context, id int64) (*schema.Form, error) {
	return s.getForm(ctx, `WHERE id = ?`, id)
}

func (s *Store) GetFormBySlug(ctx context.Context, slug string) (*schema.Form, error) {
	return s.getForm(ctx, `WHERE slug = ?`, slug)
}

func (s *Store) getForm(ctx context.Context, where string, arg any) (*schema.Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms `+where, arg)
	f, err := scanForm(row)
	if err != nil {
		return nil, mapError(err, "select form failed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldColumns+` FROM fields
		WHERE form_id = ? ORDER BY ord, id`, f.ID)
	if err != nil {
		return nil, mapError(err, "select fields failed")
	}
	defer rows.Close()

	for rows.Next() {
		fd, err := scanField(rows)
		if err != nil {
			return nil, mapError(err, "scan field failed")
		}
		f.Fields = append(f.Fields, fd)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate fields failed")
	}
	return f, nil
}

// ListForms returns all forms ordered by id, without their fields.
func (s *Store) ListForms(ctx context.Context) ([]schema.Form, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+formColumns+` FROM forms ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list forms failed")
	}
	defer rows.Close()

	var out []schema.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, mapError(err, "scan form failed")
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate forms failed")
	}
	return out, nil
}

// CreateField inserts fd, assigning its ID and a slug unique within the
// form. A negative Order appends after the current last field.
func (s *Store) CreateField(ctx context.Context, fd *schema.Field) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback()

	slug, err := uniqueSlug(ctx, tx, schema.FieldSlug(fd.Label),
		`SELECT EXISTS (SELECT 1 FROM fields WHERE form_id = ? AND slug = ?)`, fd.FormID)
	if err != nil {
		return err
	}
	fd.Slug = slug

	if fd.Order < 0 {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ord) + 1, 0) FROM fields WHERE form_id = ?`,
			fd.FormID,
		).Scan(&fd.Order)
		if err != nil {
			return mapError(err, "next order failed")
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO fields (form_id, label, slug, field_type, required, visible,
			choices, default_value, placeholder_text, help_text, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fd.FormID, fd.Label, fd.Slug, fd.FieldType, fd.Required, fd.Visible,
		fd.Choices, fd.Default, fd.PlaceholderText, fd.HelpText, fd.Order,
	)
	if err != nil {
		return mapError(err, "insert field failed")
	}
	if fd.ID, err = res.LastInsertId(); err != nil {
		return mapError(err, "insert field failed")
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// UpdateField rewrites fd's mutable columns. The slug is immutable so
// stored values keep their wire names.
func (s *Store) UpdateField(ctx context.Context, fd *schema.Field) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fields SET label = ?, field_type = ?, required = ?, visible = ?,
			choices = ?, default_value = ?, placeholder_text = ?,
			help_text = ?, ord = ?
		WHERE id = ? AND form_id = ?`,
		fd.Label, fd.FieldType, fd.Required, fd.Visible,
		fd.Choices, fd.Default, fd.PlaceholderText, fd.HelpText, fd.Order,
		fd.ID, fd.FormID,
	)
	if err != nil {
		return mapError(err, "update field failed")
	}
	return requireAffected(res, "field %d", fd.ID)
}

// DeleteField removes the field and closes the order gap it leaves, both
// in one transaction so no reader sees a sparse ordering.
func (s *Store) DeleteField(ctx context.Context, formID, fieldID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback()

	var ord int
	err = tx.QueryRowContext(ctx,
		`SELECT ord FROM fields WHERE id = ? AND form_id = ?`,
		fieldID, formID,
	).Scan(&ord)
	if err != nil {
		return mapError(err, "select field failed")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fields WHERE id = ? AND form_id = ?`, fieldID, formID); err != nil {
		return mapError(err, "delete field failed")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE fields SET ord = ord - 1 WHERE form_id = ? AND ord >= ?`,
		formID, ord); err != nil {
		return mapError(err, "compact order failed")
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// --- scanning and slug helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanForm(row scannable) (*schema.Form, error) {
	var (
		f                    schema.Form
		publishAt, expiresAt sql.NullTime
	)
	err := row.Scan(
		&f.ID, &f.Title, &f.Slug, &f.Intro, &f.ButtonText, &f.Response, &f.Status,
		&publishAt, &expiresAt, &f.LoginRequired,
		&f.SendEmail, &f.EmailFrom, &f.EmailCopies, &f.EmailSubject, &f.EmailMessage,
	)
	if err != nil {
		return nil, err
	}
	f.PublishDate = timePtr(publishAt)
	f.ExpiryDate = timePtr(expiresAt)
	return &f, nil
}

func scanField(row scannable) (schema.Field, error) {
	var fd schema.Field
	err := row.Scan(
		&fd.ID, &fd.FormID, &fd.Label, &fd.Slug, &fd.FieldType,
		&fd.Required, &fd.Visible, &fd.Choices, &fd.Default,
		&fd.PlaceholderText, &fd.HelpText, &fd.Order,
	)
	return fd, err
}

// uniqueSlug finds a free slug. existsQuery takes the candidate as its
// final placeholder, after any args.
func uniqueSlug(ctx context.Context, tx *sql.Tx, base, existsQuery string, args ...any) (string, error) {
	var lookupErr error
	slug, err := schema.UniqueSlug(base, schema.SlugMaxLength, func(candidate string) bool {
		var found bool
		if err := tx.QueryRowContext(ctx, existsQuery, append(args, candidate)...).Scan(&found); err != nil {
			lookupErr = mapError(err, "slug lookup failed")
			return false
		}
		return found
	})
	if lookupErr != nil {
		return "", lookupErr
	}
	return slug, err
}

func requireAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "rows affected failed")
	}
	if n == 0 {
		return notFoundf(format, args...)
	}
	return nil
}
