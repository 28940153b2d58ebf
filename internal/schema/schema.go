// Package schema holds the administrator-defined form model: a Form and its
// ordered Field definitions, plus the slug, choice, and publication rules
// that govern them.
package schema

import (
	"strings"
	"time"

	"github.com/formforge/formforge/internal/fields"
)

// Form publication status.
const (
	StatusDraft     = 1
	StatusPublished = 2
)

// Length budgets for admin-entered text.
const (
	TitleMaxLength = 50
	SlugMaxLength  = 100
	LabelMaxLength = 200
)

// Form is a user-built form schema. It exclusively owns its Fields; deleting
// a form deletes its fields and all entries transitively.
type Form struct {
	ID         int64
	Title      string
	Slug       string
	Intro      string
	ButtonText string
	Response   string

	Status      int
	PublishDate *time.Time
	ExpiryDate  *time.Time

	LoginRequired bool

	SendEmail    bool
	EmailFrom    string
	EmailCopies  string // comma separated
	EmailSubject string
	EmailMessage string

	Fields []Field // ordered by Field.Order
}

// Field is one definition inside a form.
type Field struct {
	ID     int64
	FormID int64

	Label string
	// Slug is the wire-format name for this field, unique within the form.
	Slug      string
	FieldType int

	Required bool
	Visible  bool

	// Choices is the raw delimited choice string; see ParseChoices.
	Choices string

	// Default is a literal initial value, or a {{key}} template evaluated
	// against the render context.
	Default string

	PlaceholderText string
	HelpText        string

	// Order is dense and zero-based within the form.
	Order int
}

// VisibleFields returns the visible fields in order.
func (f *Form) VisibleFields() []Field {
	out := make([]Field, 0, len(f.Fields))
	for _, fd := range f.Fields {
		if fd.Visible {
			out = append(out, fd)
		}
	}
	return out
}

// FieldByID returns the field with the given id, if it still exists.
func (f *Form) FieldByID(id int64) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.ID == id {
			return fd, true
		}
	}
	return Field{}, false
}

// Viewer carries the authorization facts the publication rule needs. The
// host framework decides how these are established.
type Viewer struct {
	IsStaff         bool
	IsAuthenticated bool
}

// Published reports whether the form should be visible to viewer at now.
// Staff see everything; everyone else needs a published status, an open
// publication window, and authentication where the form requires it.
func (f *Form) Published(viewer Viewer, now time.Time) bool {
	if viewer.IsStaff {
		return true
	}
	if f.Status != StatusPublished {
		return false
	}
	if f.PublishDate != nil && f.PublishDate.After(now) {
		return false
	}
	if f.ExpiryDate != nil && f.ExpiryDate.Before(now) {
		return false
	}
	if f.LoginRequired && !viewer.IsAuthenticated {
		return false
	}
	return true
}

// EmailCopyList splits the copies field into trimmed non-empty addresses.
func (f *Form) EmailCopyList() []string {
	return splitTrimmed(f.EmailCopies, ",")
}

// ParsedChoices parses the field's raw choice string with the default
// quoting characters.
func (fd *Field) ParsedChoices() []Choice {
	return ParseChoices(fd.Choices, DefaultQuote, DefaultUnquote)
}

// IsA reports whether the field's type is any of the given codes.
func (fd *Field) IsA(codes ...int) bool {
	for _, c := range codes {
		if fd.FieldType == c {
			return true
		}
	}
	return false
}

// IsEmail reports whether the field collects an email address.
func (fd *Field) IsEmail() bool {
	return fd.FieldType == fields.Email
}

func splitTrimmed(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
