package entries

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/schema"
)

// EntryTimeLayout is the display layout for the entry timestamp column.
const EntryTimeLayout = "2006-01-02 15:04:05"

// FieldCriteria is the posted filter-and-include state for one field.
type FieldCriteria struct {
	// Export selects the field as an output column.
	Export bool

	// Op is the filter verb; FilterNone disables filtering for the field.
	Op   FilterOp
	Args []string

	// From/To carry the bounds for FilterBetween on date-typed fields.
	From *time.Time
	To   *time.Time
}

// Criteria is the full posted state driving one filter/export pass.
// Filtering is independent of column selection: a field excluded from
// export still filters rows.
type Criteria struct {
	Fields map[int64]FieldCriteria

	// IncludeTime appends the entry timestamp as the last output column.
	IncludeTime bool

	// TimeFrom/TimeTo bound the entry timestamp. The stream is narrowed
	// before row grouping only when both bounds are present.
	TimeFrom *time.Time
	TimeTo   *time.Time

	// Delimited selects delimiter-text output: no leading entry-id cell
	// and raw storage paths for file fields.
	Delimited bool

	// FileURL turns a field value id into a download reference. Used only
	// in non-delimited output.
	FileURL func(valueID int64) string
}

// Engine reconstructs tabular rows for one form from generic stored values.
type Engine struct {
	form  *schema.Form
	reg   *fields.Registry
	store Store
}

// NewEngine builds an engine over the form's current field definitions.
func NewEngine(form *schema.Form, reg *fields.Registry, store Store) *Engine {
	return &Engine{form: form, reg: reg, store: store}
}

// Columns returns the output column headers for crit, in field order, with
// the entry timestamp last when selected. The leading entry-id cell of
// non-delimited rows is not a header column.
func (e *Engine) Columns(crit Criteria) []string {
	var cols []string
	for _, fd := range e.form.Fields {
		if crit.Fields[fd.ID].Export {
			cols = append(cols, fd.Label)
		}
	}
	if crit.IncludeTime {
		cols = append(cols, "Entry time")
	}
	return cols
}

// Rows opens a lazy row stream for crit. The caller must Close it.
func (e *Engine) Rows(ctx context.Context, crit Criteria) (*RowIter, error) {
	q := ValuesQuery{FormID: e.form.ID}
	// Pushdown requires both bounds; a half-open timestamp filter is
	// ignored, matching the posted-form contract.
	if crit.TimeFrom != nil && crit.TimeTo != nil {
		q.From = crit.TimeFrom
		q.To = crit.TimeTo
	}

	src, err := e.store.Values(ctx, q)
	if err != nil {
		return nil, err
	}

	it := &RowIter{
		src:        src,
		reg:        e.reg,
		crit:       crit,
		colIdx:     make(map[int64]int),
		fieldsByID: make(map[int64]schema.Field, len(e.form.Fields)),
	}
	for _, fd := range e.form.Fields {
		it.fieldsByID[fd.ID] = fd
		if crit.Fields[fd.ID].Export {
			it.colIdx[fd.ID] = it.numCols
			it.numCols++
		}
	}
	if crit.IncludeTime {
		it.timeIdx = it.numCols
		it.numCols++
	} else {
		it.timeIdx = -1
	}
	return it, nil
}

// RowIter yields reconstructed rows one at a time. A row is excluded as a
// whole when any configured filter rejects any of its values; later values
// cannot un-reject it.
type RowIter struct {
	src        ValueIter
	reg        *fields.Registry
	crit       Criteria
	colIdx     map[int64]int
	fieldsByID map[int64]schema.Field
	numCols    int
	timeIdx    int

	cur      []string
	curEntry int64
	started  bool
	valid    bool

	row     []string
	err     error
	srcDone bool
	closed  bool
}

// Next advances to the next included row.
func (it *RowIter) Next() bool {
	if it.err != nil || it.closed || it.srcDone {
		return false
	}
	for it.src.Next() {
		v := it.src.Value()

		var completed []string
		if !it.started || v.EntryID != it.curEntry {
			if it.started && it.valid {
				completed = it.finalize()
			}
			it.begin(v)
		}
		it.place(v)
		if completed != nil {
			it.row = completed
			return true
		}
	}

	it.srcDone = true
	if err := it.src.Err(); err != nil {
		it.err = err
		return false
	}
	// Flush the final row.
	if it.started && it.valid {
		it.row = it.finalize()
		it.started = false
		return true
	}
	return false
}

// Row returns the current row. Valid until the next call to Next.
func (it *RowIter) Row() []string { return it.row }

// Err returns the first stream error, if any.
func (it *RowIter) Err() error { return it.err }

// Close releases the underlying value stream. Stopping consumption early
// leaves no shared state behind.
func (it *RowIter) Close() {
	if !it.closed {
		it.closed = true
		it.src.Close()
	}
}

// begin starts accumulating a new row for v's entry.
func (it *RowIter) begin(v StoredValue) {
	it.curEntry = v.EntryID
	it.cur = make([]string, it.numCols)
	it.valid = true
	it.started = true
	if it.timeIdx >= 0 {
		it.cur[it.timeIdx] = v.EntryTime.Format(EntryTimeLayout)
	}
}

// finalize copies the accumulated row, prefixing the raw entry id when the
// caller is not producing delimiter-text output (the leading cell feeds
// HTML-table row selection).
func (it *RowIter) finalize() []string {
	if it.crit.Delimited {
		out := make([]string, len(it.cur))
		copy(out, it.cur)
		return out
	}
	out := make([]string, 0, len(it.cur)+1)
	out = append(out, fmt.Sprintf("%d", it.curEntry))
	return append(out, it.cur...)
}

// place applies v's filter and, when its field is an exported column,
// writes the (possibly substituted) value into the accumulated row. Values
// whose field no longer exists in the schema are dropped silently.
func (it *RowIter) place(v StoredValue) {
	fd, known := it.fieldsByID[v.FieldID]

	// Filtering is independent of export-column selection.
	if known {
		if fc, ok := it.crit.Fields[v.FieldID]; ok && fc.Op != FilterNone {
			if !it.match(fd, fc, v.Value) {
				it.valid = false
			}
		}
	}

	idx, exported := it.colIdx[v.FieldID]
	if !exported {
		return
	}

	val := v.Value
	if known && it.reg.IsFile(fd.FieldType) && val != "" &&
		!it.crit.Delimited && it.crit.FileURL != nil {
		val = fmt.Sprintf("<a href=%q>%s</a>", it.crit.FileURL(v.ID), path.Base(val))
	}
	it.cur[idx] = val
}

// match evaluates one field's filter against a stored value, dispatching on
// the field's type category.
func (it *RowIter) match(fd schema.Field, fc FieldCriteria, value string) bool {
	switch {
	case it.reg.IsMultiple(fd.FieldType):
		return matchSet(fc.Op, fc.Args, value)
	case it.reg.IsChoice(fd.FieldType):
		return matchMembership(fc.Op, fc.Args, value)
	case it.reg.IsDate(fd.FieldType):
		if fc.Op != FilterBetween {
			return true
		}
		d, ok := parseStoredDate(value)
		if !ok {
			// A stored value that does not parse as a date never matches
			// a range filter.
			return false
		}
		return matchRange(fc.From, fc.To, d)
	default:
		var arg string
		if len(fc.Args) > 0 {
			arg = fc.Args[0]
		}
		return matchText(fc.Op, arg, value)
	}
}

// parseStoredDate reads the YYYY-MM-DD prefix of a stored date or datetime
// value.
func parseStoredDate(value string) (time.Time, bool) {
	if len(value) < len(fields.DateLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(fields.DateLayout, value[:len(fields.DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
