package forms_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/filestore/local"
	"github.com/formforge/formforge/internal/forms"
	"github.com/formforge/formforge/internal/schema"
	"github.com/formforge/formforge/internal/store/memstore"
)

type fixture struct {
	store *memstore.Store
	form  *schema.Form
	reg   *fields.Registry
}

func newFixture(t *testing.T, defs []schema.Field) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	form := &schema.Form{Title: "Job Application", Status: schema.StatusPublished}
	require.NoError(t, store.CreateForm(ctx, form))
	for i := range defs {
		defs[i].FormID = form.ID
		defs[i].Visible = true
		defs[i].Order = -1
		require.NoError(t, store.CreateField(ctx, &defs[i]))
	}

	loaded, err := store.GetForm(ctx, form.ID)
	require.NoError(t, err)
	return &fixture{store: store, form: loaded, reg: fields.Default()}
}

func (fx *fixture) field(t *testing.T, slug string) schema.Field {
	t.Helper()
	for _, fd := range fx.form.Fields {
		if fd.Slug == slug {
			return fd
		}
	}
	t.Fatalf("no field with slug %q", slug)
	return schema.Field{}
}

func TestBuildControls(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
		{Label: "Color", FieldType: fields.Select, Choices: "red,green,blue"},
		{Label: "Size", FieldType: fields.Select, Choices: "s,m,l", Required: true, Default: "m"},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{})
	require.NoError(t, err)

	controls := f.Controls()
	require.Len(t, controls, 3)
	assert.False(t, f.Bound())

	// Optional choice control gets a leading blank placeholder.
	color := controls[1]
	require.Len(t, color.Choices, 4)
	assert.Equal(t, "", color.Choices[0].Value)
	assert.Equal(t, "red", color.Choices[1].Value)

	// Required with a valid default pre-selected: no placeholder.
	size := controls[2]
	require.Len(t, size.Choices, 3)
	assert.Equal(t, "s", size.Choices[0].Value)
	assert.Equal(t, "m", size.Initial)
}

func TestBuildUnknownTypeFails(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text},
	})
	fx.form.Fields[0].FieldType = 999

	_, err := forms.Build(fx.form, fx.reg, forms.Options{})
	require.Error(t, err)
}

func TestInitialPrecedence(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Default: "hello {{user}}"},
	})
	nameID := fx.field(t, "name").ID

	t.Run("default template", func(t *testing.T) {
		f, err := forms.Build(fx.form, fx.reg, forms.Options{
			Context: map[string]string{"user": "ada"},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello ada", f.Controls()[0].Initial)
	})

	t.Run("caller initial overrides default", func(t *testing.T) {
		f, err := forms.Build(fx.form, fx.reg, forms.Options{
			Initial: map[string]string{"name": "Grace"},
			Context: map[string]string{"user": "ada"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Grace", f.Controls()[0].Initial)
	})

	t.Run("prior entry wins", func(t *testing.T) {
		f, err := forms.Build(fx.form, fx.reg, forms.Options{
			PriorEntry:  &entries.Entry{ID: 7, FormID: fx.form.ID},
			PriorValues: []entries.FieldValue{{FieldID: nameID, Value: "Stored"}},
			Initial:     map[string]string{"name": "Grace"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Stored", f.Controls()[0].Initial)
	})
}

func TestInitialFallsThroughWithoutPriorValue(t *testing.T) {
	// A field added to the schema after the entry was created has no
	// stored value; edit mode must still seed it from the caller
	// override or the default.
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text},
		{Label: "Color", FieldType: fields.Text, Default: "blue"},
		{Label: "Size", FieldType: fields.Text, Default: "m"},
	})
	nameID := fx.field(t, "name").ID

	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		PriorEntry:  &entries.Entry{ID: 7, FormID: fx.form.ID},
		PriorValues: []entries.FieldValue{{FieldID: nameID, Value: "Stored"}},
		Initial:     map[string]string{"size": "xl"},
	})
	require.NoError(t, err)

	controls := f.Controls()
	assert.Equal(t, "Stored", controls[0].Initial)
	assert.Equal(t, "blue", controls[1].Initial)
	assert.Equal(t, "xl", controls[2].Initial)
}

func TestValidateCleansValues(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
		{Label: "Email", FieldType: fields.Email, Required: true},
		{Label: "Tags", FieldType: fields.CheckboxMultiple, Choices: "go,rust,zig"},
		{Label: "Subscribe", FieldType: fields.Checkbox},
	})

	data := url.Values{
		"name":  {"Ada"},
		"email": {"  ada@example.com  "},
		"tags":  {"go", "zig"},
	}
	f, err := forms.Build(fx.form, fx.reg, forms.Options{Data: data})
	require.NoError(t, err)

	require.True(t, f.Validate())
	cleaned := f.CleanedData()
	assert.Equal(t, "Ada", cleaned["name"])
	assert.Equal(t, "ada@example.com", cleaned["email"])
	assert.Equal(t, "go, zig", cleaned["tags"])
	// Unchecked boxes store the explicit sentinel, not an empty value.
	assert.Equal(t, "False", cleaned["subscribe"])
}

func TestValidateCollectsFieldErrors(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
		{Label: "Email", FieldType: fields.Email, Required: true},
		{Label: "Color", FieldType: fields.Select, Choices: "red,green"},
		{Label: "Age", FieldType: fields.Integer},
	})

	data := url.Values{
		"email": {"not-an-address"},
		"color": {"purple"},
		"age":   {"12.5"},
	}
	f, err := forms.Build(fx.form, fx.reg, forms.Options{Data: data})
	require.NoError(t, err)

	require.False(t, f.Validate())
	errsBySlug := f.Errors()
	assert.Contains(t, errsBySlug, "name")
	assert.Contains(t, errsBySlug, "email")
	assert.Contains(t, errsBySlug, "color")
	assert.Contains(t, errsBySlug, "age")
}

func TestRequiredCheckboxMustBeChecked(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Terms", FieldType: fields.Checkbox, Required: true},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{Data: url.Values{}})
	require.NoError(t, err)
	require.False(t, f.Validate())

	f, err = forms.Build(fx.form, fx.reg, forms.Options{Data: url.Values{"terms": {"on"}}})
	require.NoError(t, err)
	require.True(t, f.Validate())
	assert.Equal(t, "True", f.CleanedData()["terms"])
}

func TestSaveCreatesEntryAndValues(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
		{Label: "Tags", FieldType: fields.CheckboxMultiple, Choices: "go,rust"},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		Data: url.Values{"name": {"Ada"}, "tags": {"go", "rust"}},
	})
	require.NoError(t, err)
	require.True(t, f.Validate())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry, err := f.Save(ctx, fx.store, nil, "", now)
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	assert.Equal(t, now, entry.EntryTime)

	values, err := fx.store.ValuesForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "Ada", values[0].Value)
	assert.Equal(t, "go, rust", values[1].Value)
}

func TestSaveUploadsFile(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
		{Label: "Resume", FieldType: fields.File},
	})

	blobs, err := local.New(t.TempDir())
	require.NoError(t, err)

	content := "pdf bytes"
	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		Data: url.Values{"name": {"Ada"}},
		Files: map[string]*forms.Upload{
			"resume": {
				Filename:    "my resume.pdf",
				Content:     strings.NewReader(content),
				Size:        int64(len(content)),
				ContentType: "application/pdf",
			},
		},
	})
	require.NoError(t, err)
	require.True(t, f.Validate())

	entry, err := f.Save(ctx, fx.store, blobs, "uploads", time.Now())
	require.NoError(t, err)

	values, err := fx.store.ValuesForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)

	key := values[1].Value
	require.True(t, strings.HasSuffix(key, "/my_resume.pdf"), "got key %q", key)

	obj, err := blobs.Get(ctx, "uploads", key)
	require.NoError(t, err)
	defer obj.Close()
	assert.Equal(t, int64(len(content)), obj.Info().Size)
}

func TestSaveOptionalFileLeftEmpty(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
		{Label: "Resume", FieldType: fields.File},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		Data: url.Values{"name": {"Ada"}},
	})
	require.NoError(t, err)
	require.True(t, f.Validate())

	entry, err := f.Save(ctx, fx.store, nil, "", time.Now())
	require.NoError(t, err)

	values, err := fx.store.ValuesForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "", values[1].Value)
}

func TestSaveEditUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		Data: url.Values{"name": {"Ada"}},
	})
	require.NoError(t, err)
	require.True(t, f.Validate())
	entry, err := f.Save(ctx, fx.store, nil, "", time.Now())
	require.NoError(t, err)

	prior, err := fx.store.ValuesForEntry(ctx, entry.ID)
	require.NoError(t, err)

	edit, err := forms.Build(fx.form, fx.reg, forms.Options{
		PriorEntry:  entry,
		PriorValues: prior,
		Data:        url.Values{"name": {"Ada Lovelace"}},
	})
	require.NoError(t, err)
	require.True(t, edit.Validate())

	saved, err := edit.Save(ctx, fx.store, nil, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, entry.ID, saved.ID)

	values, err := fx.store.ValuesForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, prior[0].ID, values[0].ID)
	assert.Equal(t, "Ada Lovelace", values[0].Value)
}

func TestSaveRejectsUnvalidatedForm(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text, Required: true},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		Data: url.Values{"name": {"Ada"}},
	})
	require.NoError(t, err)

	_, err = f.Save(context.Background(), fx.store, nil, "", time.Now())
	require.Error(t, err)
}

func TestEmailRecipient(t *testing.T) {
	fx := newFixture(t, []schema.Field{
		{Label: "Name", FieldType: fields.Text},
		{Label: "Email", FieldType: fields.Email},
		{Label: "Backup Email", FieldType: fields.Email},
	})

	f, err := forms.Build(fx.form, fx.reg, forms.Options{
		Data: url.Values{
			"email":        {"ada@example.com"},
			"backup_email": {"other@example.com"},
		},
	})
	require.NoError(t, err)
	require.True(t, f.Validate())
	assert.Equal(t, "ada@example.com", f.EmailRecipient())
}
