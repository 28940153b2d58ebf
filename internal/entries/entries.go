// Package entries holds the submission side of the system: entries and
// their generic text field values, the persistence port they live behind,
// and the filter/export engine that reconstructs tabular rows from them.
package entries

import (
	"context"
	"time"
)

// Entry is one end-user submission against a form.
type Entry struct {
	ID        int64
	FormID    int64
	EntryTime time.Time
}

// FieldValue is a single answer, stored as text regardless of logical type.
// FieldID references the field definition that existed at submission time;
// it is deliberately not a foreign key against the current schema, so the
// schema can evolve independently of historical data.
type FieldValue struct {
	ID      int64
	EntryID int64
	FieldID int64
	Value   string
}

// StoredValue is a FieldValue joined to its parent entry's timestamp, as
// produced by the value stream.
type StoredValue struct {
	FieldValue
	EntryTime time.Time
}

// ValuesQuery selects the value stream for a form. From/To, when both set,
// narrow the stream to entries whose timestamp falls in the inclusive range
// before row grouping.
type ValuesQuery struct {
	FormID int64
	From   *time.Time
	To     *time.Time
}

// ValueIter is a restartable pull-based stream of stored values, ordered by
// entry id descending (newest submissions first). Restart by re-issuing the
// query. Callers must Close.
type ValueIter interface {
	Next() bool
	Value() StoredValue
	Err() error
	Close()
}

// Submission is one atomic write against the entry store: a new or reused
// entry plus the value updates and inserts belonging to it. Inserts are
// applied in a single batch; the whole write happens in one transaction so
// partial failure never leaves an entry without its values.
type Submission struct {
	FormID    int64
	EntryID   int64 // 0 creates a new entry
	EntryTime time.Time
	Updates   []FieldValue
	Inserts   []FieldValue
}

// Store is the persistence port for entries and field values. It carries no
// business logic; it exists as a seam so the filter/export engine can be
// tested against a fake.
type Store interface {
	// CreateEntry persists e, assigning ID.
	CreateEntry(ctx context.Context, e *Entry) error

	// UpdateValue rewrites the value text of an existing field value.
	UpdateValue(ctx context.Context, v *FieldValue) error

	// BulkInsertValues inserts all values in one batch, assigning IDs.
	BulkInsertValues(ctx context.Context, vs []FieldValue) error

	// SaveSubmission applies sub atomically and returns the entry.
	SaveSubmission(ctx context.Context, sub *Submission) (*Entry, error)

	// GetValue returns one field value by id.
	GetValue(ctx context.Context, id int64) (*FieldValue, error)

	// ValuesForEntry returns the field values of one entry.
	ValuesForEntry(ctx context.Context, entryID int64) ([]FieldValue, error)

	// Values opens the value stream described by q.
	Values(ctx context.Context, q ValuesQuery) (ValueIter, error)

	// DeleteEntries removes the given entries of a form and their values.
	DeleteEntries(ctx context.Context, formID int64, entryIDs []int64) error
}
