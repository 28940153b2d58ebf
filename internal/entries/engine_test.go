package entries_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/schema"
	"github.com/formforge/formforge/internal/store/memstore"
)

type fixture struct {
	store *memstore.Store
	form  *schema.Form
	reg   *fields.Registry
}

func newFixture(t *testing.T, defs ...schema.Field) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()

	form := &schema.Form{Title: "Test Form", Status: schema.StatusPublished}
	require.NoError(t, s.CreateForm(ctx, form))

	for _, fd := range defs {
		fd.FormID = form.ID
		fd.Visible = true
		fd.Order = -1
		require.NoError(t, s.CreateField(ctx, &fd))
	}

	loaded, err := s.GetForm(ctx, form.ID)
	require.NoError(t, err)
	return &fixture{store: s, form: loaded, reg: fields.Default()}
}

func (fx *fixture) submit(t *testing.T, at time.Time, values map[string]string) *entries.Entry {
	t.Helper()
	sub := &entries.Submission{FormID: fx.form.ID, EntryTime: at}
	for slug, value := range values {
		var fieldID int64
		for _, fd := range fx.form.Fields {
			if fd.Slug == slug {
				fieldID = fd.ID
			}
		}
		require.NotZero(t, fieldID, "unknown slug %q", slug)
		sub.Inserts = append(sub.Inserts, entries.FieldValue{FieldID: fieldID, Value: value})
	}
	entry, err := fx.store.SaveSubmission(context.Background(), sub)
	require.NoError(t, err)
	return entry
}

func (fx *fixture) fieldID(slug string) int64 {
	for _, fd := range fx.form.Fields {
		if fd.Slug == slug {
			return fd.ID
		}
	}
	return 0
}

func exportAll(fx *fixture) entries.Criteria {
	crit := entries.Criteria{Fields: map[int64]entries.FieldCriteria{}, Delimited: true}
	for _, fd := range fx.form.Fields {
		crit.Fields[fd.ID] = entries.FieldCriteria{Export: true}
	}
	return crit
}

func collectRows(t *testing.T, fx *fixture, crit entries.Criteria) [][]string {
	t.Helper()
	engine := entries.NewEngine(fx.form, fx.reg, fx.store)
	it, err := engine.Rows(context.Background(), crit)
	require.NoError(t, err)
	defer it.Close()

	var rows [][]string
	for it.Next() {
		rows = append(rows, it.Row())
	}
	require.NoError(t, it.Err())
	return rows
}

func TestEngine_BasicRoundTrip(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Name", FieldType: fields.Text, Required: true})
	fx.submit(t, time.Now(), map[string]string{"name": "Ada"})

	rows := collectRows(t, fx, exportAll(fx))
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Ada"}, rows[0])
}

func TestEngine_LeadingEntryIDInHTMLMode(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Name", FieldType: fields.Text})
	entry := fx.submit(t, time.Now(), map[string]string{"name": "Ada"})

	crit := exportAll(fx)
	crit.Delimited = false
	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{fmt.Sprintf("%d", entry.ID), "Ada"}, rows[0])
}

func TestEngine_RowExclusionIsConjunctiveAndRowScoped(t *testing.T) {
	fx := newFixture(t,
		schema.Field{Label: "Name", FieldType: fields.Text},
		schema.Field{Label: "City", FieldType: fields.Text},
	)
	fx.submit(t, time.Now(), map[string]string{"name": "Ada", "city": "London"})
	fx.submit(t, time.Now(), map[string]string{"name": "Grace", "city": "London"})

	// Name filter fails for Ada's row even though City passes: the whole
	// row must be excluded.
	crit := exportAll(fx)
	crit.Fields[fx.fieldID("name")] = entries.FieldCriteria{
		Export: true, Op: entries.FilterEquals, Args: []string{"Grace"},
	}
	crit.Fields[fx.fieldID("city")] = entries.FieldCriteria{
		Export: true, Op: entries.FilterContains, Args: []string{"london"},
	}

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Grace", "London"}, rows[0])
}

func TestEngine_FilterAppliesToNonExportedColumn(t *testing.T) {
	fx := newFixture(t,
		schema.Field{Label: "Name", FieldType: fields.Text},
		schema.Field{Label: "City", FieldType: fields.Text},
	)
	fx.submit(t, time.Now(), map[string]string{"name": "Ada", "city": "London"})
	fx.submit(t, time.Now(), map[string]string{"name": "Grace", "city": "Paris"})

	// City is filtered but not exported: filtering is independent of
	// column selection.
	crit := exportAll(fx)
	crit.Fields[fx.fieldID("city")] = entries.FieldCriteria{
		Export: false, Op: entries.FilterEquals, Args: []string{"paris"},
	}

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Grace"}, rows[0])
}

func TestEngine_SchemaDriftDropsValueSilently(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t,
		schema.Field{Label: "Name", FieldType: fields.Text},
		schema.Field{Label: "Nickname", FieldType: fields.Text},
	)
	fx.submit(t, time.Now(), map[string]string{"name": "Ada", "nickname": "Countess"})

	// Delete the nickname field after submission; its stored value must
	// produce no cell and no error.
	require.NoError(t, fx.store.DeleteField(ctx, fx.form.ID, fx.fieldID("nickname")))
	loaded, err := fx.store.GetForm(ctx, fx.form.ID)
	require.NoError(t, err)
	fx.form = loaded

	rows := collectRows(t, fx, exportAll(fx))
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Ada"}, rows[0])
}

func TestEngine_MultiChoiceSetFilter(t *testing.T) {
	fx := newFixture(t, schema.Field{
		Label: "Toppings", FieldType: fields.CheckboxMultiple, Choices: "cheese,ham,olives",
	})
	fx.submit(t, time.Now(), map[string]string{"toppings": "cheese, olives"})
	fx.submit(t, time.Now(), map[string]string{"toppings": "ham"})

	crit := exportAll(fx)
	crit.Fields[fx.fieldID("toppings")] = entries.FieldCriteria{
		Export: true, Op: entries.FilterContainsAny, Args: []string{"olives"},
	}

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"cheese, olives"}, rows[0])
}

func TestEngine_DateBetweenFilter(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Born", FieldType: fields.Date})
	fx.submit(t, time.Now(), map[string]string{"born": "1815-12-10"})
	fx.submit(t, time.Now(), map[string]string{"born": "1906-12-09"})

	from := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)
	crit := exportAll(fx)
	crit.Fields[fx.fieldID("born")] = entries.FieldCriteria{
		Export: true, Op: entries.FilterBetween, From: &from, To: &to,
	}

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1906-12-09"}, rows[0])
}

func TestEngine_UnparseableDateNeverMatchesRange(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Born", FieldType: fields.Date})
	fx.submit(t, time.Now(), map[string]string{"born": "unknown"})

	from := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)
	crit := exportAll(fx)
	crit.Fields[fx.fieldID("born")] = entries.FieldCriteria{
		Export: true, Op: entries.FilterBetween, From: &from, To: &to,
	}

	assert.Empty(t, collectRows(t, fx, crit))
}

func TestEngine_TimestampColumnAndPushdown(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Name", FieldType: fields.Text})
	early := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	fx.submit(t, early, map[string]string{"name": "Ada"})
	fx.submit(t, late, map[string]string{"name": "Grace"})

	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	crit := exportAll(fx)
	crit.IncludeTime = true
	crit.TimeFrom = &from
	crit.TimeTo = &to

	engine := entries.NewEngine(fx.form, fx.reg, fx.store)
	assert.Equal(t, []string{"Name", "Entry time"}, engine.Columns(crit))

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Grace", "2026-02-01 09:00:00"}, rows[0])
}

func TestEngine_FileValueBecomesDownloadLink(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Resume", FieldType: fields.File})
	fx.submit(t, time.Now(), map[string]string{"resume": "ab12cd34/resume.pdf"})

	crit := exportAll(fx)
	crit.Delimited = false
	crit.FileURL = func(valueID int64) string {
		return fmt.Sprintf("/files/%d", valueID)
	}

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	// Cell 0 is the entry id; the file cell links the basename only.
	assert.Equal(t, `<a href="/files/1">resume.pdf</a>`, rows[0][1])
}

func TestEngine_FileValueStaysRawInDelimitedMode(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Resume", FieldType: fields.File})
	fx.submit(t, time.Now(), map[string]string{"resume": "ab12cd34/resume.pdf"})

	crit := exportAll(fx)
	crit.FileURL = func(int64) string { return "/unused" }

	rows := collectRows(t, fx, crit)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"ab12cd34/resume.pdf"}, rows[0])
}

func TestEngine_MultipleEntriesNewestFirst(t *testing.T) {
	fx := newFixture(t, schema.Field{Label: "Name", FieldType: fields.Text})
	fx.submit(t, time.Now(), map[string]string{"name": "Ada"})
	fx.submit(t, time.Now(), map[string]string{"name": "Grace"})
	fx.submit(t, time.Now(), map[string]string{"name": "Edsger"})

	rows := collectRows(t, fx, exportAll(fx))
	require.Len(t, rows, 3)
	assert.Equal(t, [][]string{{"Edsger"}, {"Grace"}, {"Ada"}}, rows)
}
