package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/formforge/formforge/internal/entries"
)

// CreateEntry inserts e, assigning its ID.
func (s *Store) CreateEntry(ctx context.Context, e *entries.Entry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO entries (form_id, entry_time) VALUES ($1, $2) RETURNING id`,
		e.FormID, e.EntryTime,
	).Scan(&e.ID)
	if err != nil {
		return mapError(err, "insert entry failed")
	}
	return nil
}

// UpdateValue rewrites the text of an existing field value.
func (s *Store) UpdateValue(ctx context.Context, v *entries.FieldValue) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE field_values SET value = $2 WHERE id = $1`, v.ID, v.Value)
	if err != nil {
		return mapError(err, "update value failed")
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("field value %d", v.ID)
	}
	return nil
}

// BulkInsertValues inserts all values in one batch round trip, assigning IDs.
func (s *Store) BulkInsertValues(ctx context.Context, vs []entries.FieldValue) error {
	if len(vs) == 0 {
		return nil
	}
	return s.insertValues(ctx, s.pool, vs)
}

// SaveSubmission applies sub in one transaction: the entry row is created
// or reused, updates are applied, and inserts go in as a single batch. A
// partial failure rolls everything back, so an entry never exists without
// its values.
func (s *Store) SaveSubmission(ctx context.Context, sub *entries.Submission) (*entries.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	defer tx.Rollback(ctx)

	entry := &entries.Entry{ID: sub.EntryID, FormID: sub.FormID, EntryTime: sub.EntryTime}
	if entry.ID == 0 {
		err = tx.QueryRow(ctx,
			`INSERT INTO entries (form_id, entry_time) VALUES ($1, $2) RETURNING id`,
			entry.FormID, entry.EntryTime,
		).Scan(&entry.ID)
		if err != nil {
			return nil, mapError(err, "insert entry failed")
		}
	} else {
		err = tx.QueryRow(ctx,
			`SELECT form_id, entry_time FROM entries WHERE id = $1`, entry.ID,
		).Scan(&entry.FormID, &entry.EntryTime)
		if err != nil {
			return nil, mapError(err, "select entry failed")
		}
	}

	for i := range sub.Updates {
		sub.Updates[i].EntryID = entry.ID
		tag, err := tx.Exec(ctx,
			`UPDATE field_values SET value = $2 WHERE id = $1`,
			sub.Updates[i].ID, sub.Updates[i].Value)
		if err != nil {
			return nil, mapError(err, "update value failed")
		}
		if tag.RowsAffected() == 0 {
			return nil, notFoundf("field value %d", sub.Updates[i].ID)
		}
	}

	for i := range sub.Inserts {
		sub.Inserts[i].EntryID = entry.ID
	}
	if err := s.insertValues(ctx, tx, sub.Inserts); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err, "commit failed")
	}
	return entry, nil
}

// batcher is satisfied by both pgxpool.Pool and pgx.Tx.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (s *Store) insertValues(ctx context.Context, db batcher, vs []entries.FieldValue) error {
	if len(vs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range vs {
		b.Queue(
			`INSERT INTO field_values (entry_id, field_id, value) VALUES ($1, $2, $3) RETURNING id`,
			vs[i].EntryID, vs[i].FieldID, vs[i].Value)
	}
	br := db.SendBatch(ctx, b)
	defer br.Close()
	for i := range vs {
		if err := br.QueryRow().Scan(&vs[i].ID); err != nil {
			return mapError(err, "insert value failed")
		}
	}
	return nil
}

// GetValue returns one field value by id.
func (s *Store) GetValue(ctx context.Context, id int64) (*entries.FieldValue, error) {
	var v entries.FieldValue
	err := s.pool.QueryRow(ctx,
		`SELECT id, entry_id, field_id, value FROM field_values WHERE id = $1`, id,
	).Scan(&v.ID, &v.EntryID, &v.FieldID, &v.Value)
	if err != nil {
		return nil, mapError(err, "select value failed")
	}
	return &v, nil
}

// ValuesForEntry returns the field values of one entry in insertion order.
func (s *Store) ValuesForEntry(ctx context.Context, entryID int64) ([]entries.FieldValue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, entry_id, field_id, value FROM field_values
		WHERE entry_id = $1 ORDER BY id`, entryID)
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
	sql := `
		SELECT v.id, v.entry_id, v.field_id, v.value, e.entry_time
		FROM field_values v
		JOIN entries e ON e.id = v.entry_id
		WHERE e.form_id = $1`
	args := []any{q.FormID}
	if q.From != nil {
		args = append(args, *q.From)
		sql += ` AND e.entry_time >= $2`
	}
	if q.To != nil {
		args = append(args, *q.To)
		if q.From != nil {
			sql += ` AND e.entry_time <= $3`
		} else {
			sql += ` AND e.entry_time <= $2`
		}
	}
	sql += ` ORDER BY v.entry_id DESC, v.id`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "select value stream failed")
	}
	return &valueIter{rows: rows}, nil
}

// DeleteEntries removes the given entries of a form; values cascade.
func (s *Store) DeleteEntries(ctx context.Context, formID int64, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM entries WHERE form_id = $1 AND id = ANY($2)`,
		formID, entryIDs)
	if err != nil {
		return mapError(err, "delete entries failed")
	}
	return nil
}

type valueIter struct {
	rows pgx.Rows
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
