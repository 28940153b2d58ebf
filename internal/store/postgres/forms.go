package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/formforge/formforge/internal/schema"
)

const formColumns = `id, title, slug, intro, button_text, response, status,
	publish_date, expiry_date, login_required,
	send_email, email_from, email_copies, email_subject, email_message`

const fieldColumns = `id, form_id, label, slug, field_type, required, visible,
	choices, default_value, placeholder_text, help_text, ord`

// CreateForm inserts f, assigning its ID and a slug unique across forms.
func (s *Store) CreateForm(ctx context.Context, f *schema.Form) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback(ctx)

	slug, err := s.uniqueFormSlug(ctx, tx, schema.Slugify(f.Title))
	if err != nil {
		return err
	}
	f.Slug = slug

	err = tx.QueryRow(ctx, `
		INSERT INTO forms (title, slug, intro, button_text, response, status,
			publish_date, expiry_date, login_required,
			send_email, email_from, email_copies, email_subject, email_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		f.Title, f.Slug, f.Intro, f.ButtonText, f.Response, f.Status,
		f.PublishDate, f.ExpiryDate, f.LoginRequired,
		f.SendEmail, f.EmailFrom, f.EmailCopies, f.EmailSubject, f.EmailMessage,
	).Scan(&f.ID)
	if err != nil {
		return mapError(err, "insert form failed")
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// UpdateForm rewrites f's mutable columns. The slug is immutable after
// create so stored entry URLs stay valid.
func (s *Store) UpdateForm(ctx context.Context, f *schema.Form) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE forms SET title = $2, intro = $3, button_text = $4, response = $5,
			status = $6, publish_date = $7, expiry_date = $8, login_required = $9,
			send_email = $10, email_from = $11, email_copies = $12,
			email_subject = $13, email_message = $14
		WHERE id = $1`,
		f.ID, f.Title, f.Intro, f.ButtonText, f.Response,
		f.Status, f.PublishDate, f.ExpiryDate, f.LoginRequired,
		f.SendEmail, f.EmailFrom, f.EmailCopies, f.EmailSubject, f.EmailMessage,
	)
	if err != nil {
		return mapError(err, "update form failed")
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("form %d", f.ID)
	}
	return nil
}

// DeleteForm removes the form; fields, entries, and values cascade.
func (s *Store) DeleteForm(ctx context.Context, formID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1`, formID)
	if err != nil {
		return mapError(err, "delete form failed")
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("form %d", formID)
	}
	return nil
}

func (s *Store) GetForm(ctx context.Context, id int64) (*schema.Form, error) {
	return s.getForm(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetFormBySlug(ctx context.Context, slug string) (*schema.Form, error) {
	return s.getForm(ctx, `WHERE slug = $1`, slug)
}

func (s *Store) getForm(ctx context.Context, where string, arg any) (*schema.Form, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM forms `+where, arg)
	f, err := scanForm(row)
	if err != nil {
		return nil, mapError(err, "select form failed")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+fieldColumns+` FROM fields
		WHERE form_id = $1 ORDER BY ord, id`, f.ID)
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
	rows, err := s.pool.Query(ctx, `SELECT `+formColumns+` FROM forms ORDER BY id`)
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback(ctx)

	slug, err := s.uniqueFieldSlug(ctx, tx, fd.FormID, schema.FieldSlug(fd.Label))
	if err != nil {
		return err
	}
	fd.Slug = slug

	if fd.Order < 0 {
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(ord) + 1, 0) FROM fields WHERE form_id = $1`,
			fd.FormID,
		).Scan(&fd.Order)
		if err != nil {
			return mapError(err, "next order failed")
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO fields (form_id, label, slug, field_type, required, visible,
			choices, default_value, placeholder_text, help_text, ord)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		fd.FormID, fd.Label, fd.Slug, fd.FieldType, fd.Required, fd.Visible,
		fd.Choices, fd.Default, fd.PlaceholderText, fd.HelpText, fd.Order,
	).Scan(&fd.ID)
	if err != nil {
		return mapError(err, "insert field failed")
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// UpdateField rewrites fd's mutable columns. The slug is immutable so
// stored values keep their wire names.
func (s *Store) UpdateField(ctx context.Context, fd *schema.Field) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fields SET label = $3, field_type = $4, required = $5, visible = $6,
			choices = $7, default_value = $8, placeholder_text = $9,
			help_text = $10, ord = $11
		WHERE id = $1 AND form_id = $2`,
		fd.ID, fd.FormID, fd.Label, fd.FieldType, fd.Required, fd.Visible,
		fd.Choices, fd.Default, fd.PlaceholderText, fd.HelpText, fd.Order,
	)
	if err != nil {
		return mapError(err, "update field failed")
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("field %d", fd.ID)
	}
	return nil
}

// DeleteField removes the field and closes the order gap it leaves, both
// in one transaction so no reader sees a sparse ordering.
func (s *Store) DeleteField(ctx context.Context, formID, fieldID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback(ctx)

	var ord int
	err = tx.QueryRow(ctx,
		`DELETE FROM fields WHERE id = $1 AND form_id = $2 RETURNING ord`,
		fieldID, formID,
	).Scan(&ord)
	if err != nil {
		return mapError(err, "delete field failed")
	}

	_, err = tx.Exec(ctx,
		`UPDATE fields SET ord = ord - 1 WHERE form_id = $1 AND ord >= $2`,
		formID, ord,
	)
	if err != nil {
		return mapError(err, "compact order failed")
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// --- scanning and slug helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanForm(row scannable) (*schema.Form, error) {
	var f schema.Form
	err := row.Scan(
		&f.ID, &f.Title, &f.Slug, &f.Intro, &f.ButtonText, &f.Response, &f.Status,
		&f.PublishDate, &f.ExpiryDate, &f.LoginRequired,
		&f.SendEmail, &f.EmailFrom, &f.EmailCopies, &f.EmailSubject, &f.EmailMessage,
	)
	if err != nil {
		return nil, err
	}
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

func (s *Store) uniqueFormSlug(ctx context.Context, tx pgx.Tx, base string) (string, error) {
	var lookupErr error
	slug, err := schema.UniqueSlug(base, schema.SlugMaxLength, func(candidate string) bool {
		var found bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM forms WHERE slug = $1)`, candidate,
		).Scan(&found); err != nil {
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

func (s *Store) uniqueFieldSlug(ctx context.Context, tx pgx.Tx, formID int64, base string) (string, error) {
	var lookupErr error
	slug, err := schema.UniqueSlug(base, schema.SlugMaxLength, func(candidate string) bool {
		var found bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM fields WHERE form_id = $1 AND slug = $2)`,
			formID, candidate,
		).Scan(&found); err != nil {
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
