package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/formforge/formforge/internal/entries"
)

// CreateEntry inserts e, assigning its ID.
func (s *Store) CreateEntry(ctx context.Context, e *entries.Entry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (form_id, entry_time) VALUES (?, ?)`,
		e.FormID, e.EntryTime,
	)
	if err != nil {
		return mapError(err, "insert entry failed")
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return mapError(err, "insert entry failed")
	}
	return nil
}

// UpdateValue rewrites the text of an existing field value.
func (s *Store) UpdateValue(ctx context.Context, v *entries.FieldValue) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE field_values SET value = ? WHERE id = ?`, v.Value, v.ID)
	if err != nil {
		return mapError(err, "update value failed")
	}
	return requireAffected(res, "field value %d", v.ID)
}

// BulkInsertValues inserts all values with one prepared statement,
// assigning IDs.
func (s *Store) BulkInsertValues(ctx context.Context, vs []entries.FieldValue) error {
	if len(vs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback()

	if err := insertValues(ctx, tx, vs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// SaveSubmission applies sub in one transaction: the entry row is created
// or reused, updates are applied, and inserts go in through one prepared
// statement. A partial failure rolls everything back, so an entry never
// exists without its values.
func (s *Store) SaveSubmission(ctx context.Context, sub *entries.Submission) (*entries.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	defer tx.Rollback()

	entry := &entries.Entry{ID: sub.EntryID, FormID: sub.FormID, EntryTime: sub.EntryTime}
	if entry.ID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (form_id, entry_time) VALUES (?, ?)`,
			entry.FormID, entry.EntryTime,
		)
		if err != nil {
			return nil, mapError(err, "insert entry failed")
		}
		if entry.ID, err = res.LastInsertId(); err != nil {
			return nil, mapError(err, "insert entry failed")
		}
	} else {
		err := tx.QueryRowContext(ctx,
			`SELECT form_id, entry_time FROM entries WHERE id = ?`, entry.ID,
		).Scan(&entry.FormID, &entry.EntryTime)
		if err != nil {
			return nil, mapError(err, "select entry failed")
		}
	}

	for i := range sub.Updates {
		sub.Updates[i].EntryID = entry.ID
		res, err := tx.ExecContext(ctx,
			`UPDATE field_values SET value = ? WHERE id = ?`,
			sub.Updates[i].Value, sub.Updates[i].ID)
		if err != nil {
			return nil, mapError(err, "update value failed")
		}
		if err := requireAffected(res, "field value %d", sub.Updates[i].ID); err != nil {
			return nil, err
		}
	}

	for i := range sub.Inserts {
		sub.Inserts[i].EntryID = entry.ID
	}
	if err := insertValues(ctx, tx, sub.Inserts); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err, "commit failed")
	}
	return entry, nil
}

func insertValues(ctx context.Context, tx *sql.Tx, vs []entries.FieldValue) error {
	if len(vs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO field_values (entry_id, field_id, value) VALUES (?, ?, ?)`)
	if err != nil {
		return mapError(err, "prepare insert failed")
	}
	defer stmt.Close()

	for i := range vs {
		res, err := stmt.ExecContext(ctx, vs[i].EntryID, vs[i].FieldID, vs[i].Value)
		if err != nil {
			return mapError(err, "insert value failed")
		}
		if vs[i].ID, err = res.LastInsertId(); err != nil {
			return mapError(err, "insert value failed")
		}
	}
	return nil
}

// GetValue returns one field value by id.
func (s *Store) GetValue(ctx context.Context, id int64) (*entries.FieldValue, error) {
	var v entries.FieldValue
	err := s.db.QueryRowContext(ctx,
		`SELECT id, entry_id, field_id, value FROM field_values WHERE id = ?`, id,
	).Scan(&v.ID, &v.EntryID, &v.FieldID, &v.Value)
	if err != nil {
		return nil, mapError(err, "select value failed")
	}
	return &v, nil
}

// ValuesForEntry returns the field values of one entry in insertion order.
func (s *Store) ValuesForEntry(ctx context.Context, entryID int64) ([]entries.FieldValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_id, field_id, value FROM field_values
		WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, mapError(err, "select values failed")
	}
	defer rows.Close()

	var out []entries.FieldValue
	for rows.Next() {
		var v entries.FieldValue
		if err := rows.Scan(&v.ID, &v.EntryID, &v.FieldID, &v.Value); err != nil {
			return nil, mapError(err, "scan value failed")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate values failed")
	}
	return out, nil
}

// Values opens the joined value stream for a form, newest entries first.
// The optional time bounds are pushed down to the query.
func (s *Store) Values(ctx context.Context, q entries.ValuesQuery) (entries.ValueIter, error) {
	query := `
		SELECT v.id, v.entry_id, v.field_id, v.value, e.entry_time
		FROM field_values v
		JOIN entries e ON e.id = v.entry_id
		WHERE e.form_id = ?`
	args := []any{q.FormID}
	if q.From != nil {
		query += ` AND e.entry_time >= ?`
		args = append(args, *q.From)
	}
	if q.To != nil {
		query += ` AND e.entry_time <= ?`
		args = append(args, *q.To)
	}
	query += ` ORDER BY v.entry_id DESC, v.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "select value stream failed")
	}
	return &valueIter{rows: rows}, nil
}

// DeleteEntries removes the given entries of a form and their values.
// Values are removed explicitly so the store does not depend on foreign
// key enforcement being enabled.
func (s *Store) DeleteEntries(ctx context.Context, formID int64, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin failed")
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(entryIDs)), ", ")
	args := make([]any, 0, len(entryIDs)+1)
	args = append(args, formID)
	for _, id := range entryIDs {
		args = append(args, id)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM field_values WHERE entry_id IN (
			SELECT id FROM entries WHERE form_id = ? AND id IN (`+placeholders+`))`,
		args...)
	if err != nil {
		return mapError(err, "delete values failed")
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM entries WHERE form_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return mapError(err, "delete entries failed")
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

type valueIter struct {
	rows *sql.Rows
	cur  entries.StoredValue
	err  error
}

func (it *valueIter) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	var v entries.StoredValue
	if err := it.rows.Scan(&v.ID, &v.EntryID, &v.FieldID, &v.Value, &v.EntryTime); err != nil {
		it.err = mapError(err, "scan value failed")
		return false
	}
	it.cur = v
	return true
}

func (it *valueIter) Value() entries.StoredValue { return it.cur }

func (it *valueIter) Err() error {
	if it.err != nil {
		return it.err
	}
	if err := it.rows.Err(); err != nil {
		return mapError(err, "iterate value stream failed")
	}
	return nil
}

func (it *valueIter) Close() { it.rows.Close() }
