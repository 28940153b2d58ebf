// Package forms materializes a runtime input-validation form from a stored
// schema: typed controls keyed by field slug, seeded from a prior entry or
// computed defaults, validated per field, and saved as generic value rows.
package forms

import (
	"io"
	"net/url"
	"strings"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/schema"
)

// multiValueSep joins multi-value selections into one stored string.
const multiValueSep = ", "

// Upload is one file submitted with the form.
type Upload struct {
	Filename    string
	Content     io.Reader
	Size        int64
	ContentType string
}

// Options configures a materialization.
type Options struct {
	// PriorEntry and PriorValues switch the form into edit mode: stored
	// values take precedence over defaults as initial values.
	PriorEntry  *entries.Entry
	PriorValues []entries.FieldValue

	// Data is the posted submission, keyed by field slug. nil builds an
	// unbound form.
	Data url.Values

	// Files carries uploads for file-type fields, keyed by slug.
	Files map[string]*Upload

	// Initial overrides per-field defaults, keyed by slug.
	Initial map[string]string

	// Context provides values for {{key}} default-value templates. Only
	// keys present here are substitutable.
	Context map[string]string
}

// Control is one materialized input, keyed by its field's slug.
type Control struct {
	Field      schema.Field
	Descriptor fields.Descriptor

	// Choices backs choice-type controls. A leading empty placeholder
	// option is present unless the field is required and has a non-empty
	// default (a valid option is then already pre-selected).
	Choices []schema.Choice

	// Initial is the seeded value; for multi-value controls it is the
	// comma-joined form, with InitialList holding the split values.
	Initial     string
	InitialList []string
}

// BoundForm is a materialized form, optionally bound to posted data.
type BoundForm struct {
	form     *schema.Form
	reg      *fields.Registry
	opts     Options
	controls []Control

	priorByField map[int64]entries.FieldValue

	validated bool
	cleaned   map[string]string
	errors    map[string]string
}

// Build materializes the visible fields of form in order. It fails only on
// configuration errors (a field referencing an unregistered type code).
func Build(form *schema.Form, reg *fields.Registry, opts Options) (*BoundForm, error) {
	f := &BoundForm{
		form:         form,
		reg:          reg,
		opts:         opts,
		priorByField: make(map[int64]entries.FieldValue, len(opts.PriorValues)),
	}
	for _, v := range opts.PriorValues {
		f.priorByField[v.FieldID] = v
	}

	for _, fd := range form.VisibleFields() {
		desc, err := reg.Resolve(fd.FieldType)
		if err != nil {
			return nil, err
		}
		f.controls = append(f.controls, f.buildControl(fd, desc))
	}
	return f, nil
}

// Controls returns the materialized controls in field order.
func (f *BoundForm) Controls() []Control { return f.controls }

// Bound reports whether posted data was supplied.
func (f *BoundForm) Bound() bool { return f.opts.Data != nil }

func (f *BoundForm) buildControl(fd schema.Field, desc fields.Descriptor) Control {
	c := Control{Field: fd, Descriptor: desc}

	if desc.SupportsChoices {
		choices := fd.ParsedChoices()
		// Skip the placeholder when a required field already has a valid
		// pre-selected default.
		if !(fd.Required && fd.Default != "") {
			choices = append([]schema.Choice{{}}, choices...)
		}
		c.Choices = choices
	}

	c.Initial = f.initialValue(fd)
	if desc.Multiple {
		c.InitialList = splitMulti(c.Initial)
	}
	return c
}

// initialValue applies the precedence: prior entry value, then caller
// override, then the field default (template-evaluated).
func (f *BoundForm) initialValue(fd schema.Field) string {
	// A field added to the schema after the entry was created has no
	// stored value even in edit mode, so each source falls through to
	// the next.
	if v, ok := f.priorByField[fd.ID]; ok {
		return v.Value
	}
	if v := f.opts.Initial[fd.Slug]; v != "" {
		return v
	}
	return evalDefault(fd.Default, f.opts.Context)
}

// Validate binds posted data to each control and collects per-field errors
// keyed by slug. It returns true when every field passed. Errors never
// abort the form as a whole.
func (f *BoundForm) Validate() bool {
	f.validated = true
	f.cleaned = make(map[string]string, len(f.controls))
	f.errors = make(map[string]string)

	for _, c := range f.controls {
		slug := c.Field.Slug
		value, err := f.cleanControl(c)
		if err != "" {
			f.errors[slug] = err
			continue
		}
		f.cleaned[slug] = value
	}
	return len(f.errors) == 0
}

// cleanControl validates one control against the posted data and returns
// the normalized storage text, or a non-empty error message.
func (f *BoundForm) cleanControl(c Control) (string, string) {
	slug := c.Field.Slug

	if c.Descriptor.IsFile {
		return f.cleanFile(c)
	}

	if c.Descriptor.Multiple {
		values := f.opts.Data[slug]
		if len(values) == 0 {
			if c.Field.Required {
				return "", "this field is required"
			}
			return "", ""
		}
		for _, v := range values {
			if !inChoices(c.Choices, v) {
				return "", "select a valid choice"
			}
		}
		return strings.Join(values, multiValueSep), ""
	}

	raw := f.opts.Data.Get(slug)

	if c.Descriptor.SupportsChoices {
		if raw == "" {
			if c.Field.Required {
				return "", "this field is required"
			}
			return "", ""
		}
		if !inChoices(c.Choices, raw) {
			return "", "select a valid choice"
		}
		return raw, ""
	}

	if c.Descriptor.Code == fields.Checkbox {
		value, err := c.Descriptor.Parse(raw)
		if err != nil {
			return "", "enter a yes or no value"
		}
		if c.Field.Required && value != "True" {
			return "", "this field is required"
		}
		return value, ""
	}

	if raw == "" {
		if c.Field.Required {
			return "", "this field is required"
		}
		return "", ""
	}
	if c.Descriptor.Parse != nil {
		value, err := c.Descriptor.Parse(raw)
		if err != nil {
			return "", errMessage(err)
		}
		return value, ""
	}
	return raw, ""
}

// cleanFile validates a file control: a missing upload is fine unless the
// field is required and no stored value exists from a previous edit.
func (f *BoundForm) cleanFile(c Control) (string, string) {
	if _, ok := f.opts.Files[c.Field.Slug]; ok {
		return "", ""
	}
	if c.Field.Required {
		if v, ok := f.priorByField[c.Field.ID]; ok && v.Value != "" {
			return "", ""
		}
		return "", "this field is required"
	}
	return "", ""
}

// Errors returns the per-field validation errors, keyed by slug. Valid
// only after Validate.
func (f *BoundForm) Errors() map[string]string { return f.errors }

// CleanedData returns the normalized storage text per slug. Valid only
// after a successful Validate. File fields are empty here; their storage
// paths are assigned at save time.
func (f *BoundForm) CleanedData() map[string]string { return f.cleaned }

// EmailRecipient returns the cleaned value of the first email-typed field,
// or "" when no such field exists or it was left blank.
func (f *BoundForm) EmailRecipient() string {
	for _, c := range f.controls {
		if c.Field.IsEmail() {
			return f.cleaned[c.Field.Slug]
		}
	}
	return ""
}

// --- helpers ---

func inChoices(choices []schema.Choice, value string) bool {
	for _, c := range choices {
		if c.Value == value && value != "" {
			return true
		}
	}
	return false
}

func splitMulti(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(joined, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
