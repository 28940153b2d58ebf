// Package memstore is an in-memory implementation of the schema and entry
// stores. It backs tests and demos; the SQL stores are the production
// backends.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/schema"
)

// Store keeps everything in process memory, guarded by one mutex.
type Store struct {
	mu sync.Mutex

	forms   map[int64]*schema.Form
	entries map[int64]*entries.Entry
	values  map[int64]*entries.FieldValue

	nextFormID  int64
	nextFieldID int64
	nextEntryID int64
	nextValueID int64
}

var (
	_ schema.Store  = (*Store)(nil)
	_ entries.Store = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		forms:   make(map[int64]*schema.Form),
		entries: make(map[int64]*entries.Entry),
		values:  make(map[int64]*entries.FieldValue),
	}
}

// --- schema.Store ---

func (s *Store) CreateForm(_ context.Context, f *schema.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug, err := schema.UniqueSlug(schema.Slugify(f.Title), schema.SlugMaxLength, s.formSlugExists)
	if err != nil {
		return err
	}
	s.nextFormID++
	f.ID = s.nextFormID
	f.Slug = slug

	stored := *f
	stored.Fields = nil
	s.forms[f.ID] = &stored
	return nil
}

func (s *Store) UpdateForm(_ context.Context, f *schema.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.forms[f.ID]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "form %d", f.ID)
	}
	updated := *f
	updated.Slug = existing.Slug // slugs are immutable after create
	updated.Fields = existing.Fields
	s.forms[f.ID] = &updated
	return nil
}

func (s *Store) DeleteForm(_ context.Context, formID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forms[formID]; !ok {
		return errs.Newf(errs.ErrKindNotFound, "form %d", formID)
	}
	delete(s.forms, formID)
	for id, e := range s.entries {
		if e.FormID == formID {
			s.deleteEntryLocked(id)
		}
	}
	return nil
}

func (s *Store) GetForm(_ context.Context, id int64) (*schema.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "form %d", id)
	}
	return copyForm(f), nil
}

func (s *Store) GetFormBySlug(_ context.Context, slug string) (*schema.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.forms {
		if f.Slug == slug {
			return copyForm(f), nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "form %q", slug)
}

func (s *Store) ListForms(_ context.Context) ([]schema.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Form, 0, len(s.forms))
	for _, f := range s.forms {
		stripped := *f
		stripped.Fields = nil
		out = append(out, stripped)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateField(_ context.Context, fd *schema.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[fd.FormID]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "form %d", fd.FormID)
	}
	slug, err := schema.UniqueSlug(schema.FieldSlug(fd.Label), schema.SlugMaxLength, func(candidate string) bool {
		for _, existing := range form.Fields {
			if existing.Slug == candidate {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}

	s.nextFieldID++
	fd.ID = s.nextFieldID
	fd.Slug = slug
	if fd.Order < 0 {
		fd.Order = len(form.Fields) // append semantics
	}
	form.Fields = append(form.Fields, *fd)
	sortFields(form.Fields)
	return nil
}

func (s *Store) UpdateField(_ context.Context, fd *schema.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[fd.FormID]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "form %d", fd.FormID)
	}
	for i, existing := range form.Fields {
		if existing.ID == fd.ID {
			updated := *fd
			updated.Slug = existing.Slug
			form.Fields[i] = updated
			sortFields(form.Fields)
			return nil
		}
	}
	return errs.Newf(errs.ErrKindNotFound, "field %d", fd.ID)
}

func (s *Store) DeleteField(_ context.Context, formID, fieldID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[formID]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "form %d", formID)
	}
	for i, fd := range form.Fields {
		if fd.ID == fieldID {
			form.Fields = append(form.Fields[:i], form.Fields[i+1:]...)
			// Close the order gap left by the deleted field.
			for j := range form.Fields {
				if form.Fields[j].Order >= fd.Order {
					form.Fields[j].Order--
				}
			}
			sortFields(form.Fields)
			return nil
		}
	}
	return errs.Newf(errs.ErrKindNotFound, "field %d", fieldID)
}

// --- entries.Store ---

func (s *Store) CreateEntry(_ context.Context, e *entries.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createEntryLocked(e)
	return nil
}

func (s *Store) UpdateValue(_ context.Context, v *entries.FieldValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateValueLocked(v)
}

func (s *Store) BulkInsertValues(_ context.Context, vs []entries.FieldValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertValuesLocked(vs)
	return nil
}

func (s *Store) SaveSubmission(_ context.Context, sub *entries.Submission) (*entries.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry *entries.Entry
	if sub.EntryID != 0 {
		existing, ok := s.entries[sub.EntryID]
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "entry %d", sub.EntryID)
		}
		entry = existing
	} else {
		entry = &entries.Entry{FormID: sub.FormID, EntryTime: sub.EntryTime}
		s.createEntryLocked(entry)
	}

	for i := range sub.Updates {
		sub.Updates[i].EntryID = entry.ID
		if err := s.updateValueLocked(&sub.Updates[i]); err != nil {
			return nil, err
		}
	}
	for i := range sub.Inserts {
		sub.Inserts[i].EntryID = entry.ID
	}
	s.insertValuesLocked(sub.Inserts)

	result := *entry
	return &result, nil
}

func (s *Store) GetValue(_ context.Context, id int64) (*entries.FieldValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "field value %d", id)
	}
	out := *v
	return &out, nil
}

func (s *Store) ValuesForEntry(_ context.Context, entryID int64) ([]entries.FieldValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entries.FieldValue
	for _, v := range s.values {
		if v.EntryID == entryID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Values(_ context.Context, q entries.ValuesQuery) (entries.ValueIter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []entries.StoredValue
	for _, v := range s.values {
		e, ok := s.entries[v.EntryID]
		if !ok || e.FormID != q.FormID {
			continue
		}
		if q.From != nil && e.EntryTime.Before(*q.From) {
			continue
		}
		if q.To != nil && e.EntryTime.After(*q.To) {
			continue
		}
		rows = append(rows, entries.StoredValue{FieldValue: *v, EntryTime: e.EntryTime})
	}
	// Entry descending, stable value order within an entry.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntryID != rows[j].EntryID {
			return rows[i].EntryID > rows[j].EntryID
		}
		return rows[i].FieldValue.ID < rows[j].FieldValue.ID
	})
	return &valueIter{rows: rows, pos: -1}, nil
}

func (s *Store) DeleteEntries(_ context.Context, formID int64, entryIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range entryIDs {
		if e, ok := s.entries[id]; ok && e.FormID == formID {
			s.deleteEntryLocked(id)
		}
	}
	return nil
}

// --- internals ---

func (s *Store) createEntryLocked(e *entries.Entry) {
	s.nextEntryID++
	e.ID = s.nextEntryID
	stored := *e
	s.entries[e.ID] = &stored
}

func (s *Store) updateValueLocked(v *entries.FieldValue) error {
	existing, ok := s.values[v.ID]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "field value %d", v.ID)
	}
	existing.Value = v.Value
	return nil
}

func (s *Store) insertValuesLocked(vs []entries.FieldValue) {
	for i := range vs {
		s.nextValueID++
		vs[i].ID = s.nextValueID
		stored := vs[i]
		s.values[stored.ID] = &stored
	}
}

func (s *Store) deleteEntryLocked(entryID int64) {
	delete(s.entries, entryID)
	for id, v := range s.values {
		if v.EntryID == entryID {
			delete(s.values, id)
		}
	}
}

func (s *Store) formSlugExists(slug string) bool {
	for _, f := range s.forms {
		if f.Slug == slug {
			return true
		}
	}
	return false
}

func copyForm(f *schema.Form) *schema.Form {
	out := *f
	out.Fields = make([]schema.Field, len(f.Fields))
	copy(out.Fields, f.Fields)
	return &out
}

func sortFields(fds []schema.Field) {
	sort.SliceStable(fds, func(i, j int) bool { return fds[i].Order < fds[j].Order })
}

type valueIter struct {
	rows []entries.StoredValue
	pos  int
}

func (it *valueIter) Next() bool {
	it.pos++
	return it.pos < len(it.rows)
}

func (it *valueIter) Value() entries.StoredValue { return it.rows[it.pos] }
func (it *valueIter) Err() error                 { return nil }
func (it *valueIter) Close()                     {}
