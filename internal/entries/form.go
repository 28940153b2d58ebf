package entries

import (
	"net/url"
	"strconv"
	"time"

	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/schema"
)

// ControlKind selects the shape of one filter control group.
type ControlKind int

const (
	ControlText ControlKind = iota
	ControlChoiceSingle
	ControlChoiceMultiple
	ControlDateRange
	ControlTimestamp
)

// TimeSlug is the wire name of the synthetic entry-timestamp pseudo-field.
const TimeSlug = "entry_time"

// Control is one filter-and-include group of the entries meta-form: the
// verbs and value controls offered for a field, plus the posted state.
type Control struct {
	Field schema.Field // zero value for the timestamp control
	Kind  ControlKind

	// Verbs are the filter choices offered for this field category.
	Verbs []FilterOp

	// Choices backs the multi-select value control for choice fields.
	Choices []schema.Choice

	// Posted state.
	Export bool
	Op     FilterOp
	Args   []string
	From   *time.Time
	To     *time.Time
}

// EntriesForm materializes the second meta-form for a schema: one control
// group per field definition plus the synthetic timestamp control, and
// interprets posted filter criteria.
//
// Wire names are derived from field slugs: <slug>_export, <slug>_filter,
// <slug>_value (repeated for multi-selects), and <slug>_from / <slug>_to
// for range controls.
type EntriesForm struct {
	form      *schema.Form
	reg       *fields.Registry
	data      url.Values
	submitted bool
	controls  []Control
}

// NewEntriesForm builds the meta-form. A nil or empty data means the form
// was not submitted: every export flag defaults to true (a bare GET shows
// all rows and all columns) while all other lookups are absent.
func NewEntriesForm(form *schema.Form, reg *fields.Registry, data url.Values) *EntriesForm {
	f := &EntriesForm{
		form:      form,
		reg:       reg,
		data:      data,
		submitted: len(data) > 0,
	}
	for _, fd := range form.Fields {
		f.controls = append(f.controls, f.buildControl(fd))
	}
	f.controls = append(f.controls, f.buildTimestampControl())
	return f
}

// Controls returns the control groups in field order, timestamp last.
func (f *EntriesForm) Controls() []Control { return f.controls }

// Criteria converts the posted state into engine criteria. Output mode
// (Delimited, FileURL) is the caller's concern.
func (f *EntriesForm) Criteria() Criteria {
	crit := Criteria{Fields: make(map[int64]FieldCriteria, len(f.form.Fields))}
	for _, c := range f.controls {
		if c.Kind == ControlTimestamp {
			crit.IncludeTime = c.Export
			if c.Op == FilterBetween {
				crit.TimeFrom = c.From
				crit.TimeTo = c.To
			}
			continue
		}
		crit.Fields[c.Field.ID] = FieldCriteria{
			Export: c.Export,
			Op:     c.Op,
			Args:   c.Args,
			From:   c.From,
			To:     c.To,
		}
	}
	return crit
}

func (f *EntriesForm) buildControl(fd schema.Field) Control {
	c := Control{Field: fd}
	switch {
	case f.reg.IsMultiple(fd.FieldType):
		c.Kind = ControlChoiceMultiple
		c.Verbs = []FilterOp{FilterContainsAny, FilterContainsAll, FilterNotContainsAny, FilterNotContainsAll}
		c.Choices = fd.ParsedChoices()
	case f.reg.IsChoice(fd.FieldType):
		c.Kind = ControlChoiceSingle
		c.Verbs = []FilterOp{FilterEqualsAny, FilterNotEqualsAny}
		c.Choices = fd.ParsedChoices()
	case f.reg.IsDate(fd.FieldType):
		c.Kind = ControlDateRange
		c.Verbs = []FilterOp{FilterBetween}
	default:
		c.Kind = ControlText
		c.Verbs = []FilterOp{FilterContains, FilterNotContains, FilterEquals, FilterNotEquals}
	}
	f.bindPosted(&c, fd.Slug)
	return c
}

func (f *EntriesForm) buildTimestampControl() Control {
	c := Control{
		Kind:  ControlTimestamp,
		Verbs: []FilterOp{FilterBetween},
	}
	f.bindPosted(&c, TimeSlug)
	return c
}

// bindPosted reads the control's posted state from the form data. Export
// flags alone default to on when nothing was submitted.
func (f *EntriesForm) bindPosted(c *Control, slug string) {
	if !f.submitted {
		c.Export = true
		return
	}
	c.Export = f.data.Get(slug+"_export") != ""

	op := FilterNone
	if raw := f.data.Get(slug + "_filter"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			op = FilterOp(n)
		}
	}
	// Only verbs offered for this category are honored.
	for _, verb := range c.Verbs {
		if op == verb {
			c.Op = op
			break
		}
	}
	if c.Op == FilterNone {
		return
	}

	switch c.Kind {
	case ControlDateRange, ControlTimestamp:
		c.From = parsePostedDate(f.data.Get(slug + "_from"))
		c.To = parsePostedDate(f.data.Get(slug + "_to"))
		if c.From == nil && c.To == nil {
			c.Op = FilterNone
		}
	default:
		args := f.data[slug+"_value"]
		for _, a := range args {
			if a != "" {
				c.Args = append(c.Args, a)
			}
		}
		if len(c.Args) == 0 {
			c.Op = FilterNone
		}
	}
}

func parsePostedDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(fields.DateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
