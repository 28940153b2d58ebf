// Package fields defines the field type registry: the process-wide mapping
// from a stable integer type code to the parsing and capability information
// the materializer and the filter engine need.
//
// Capabilities are explicit flags decided at registration time. Nothing in
// the system inspects control constructors at runtime to discover what a
// type supports.
package fields

import (
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/formforge/formforge/internal/errs"
)

// Stable type codes. These are stored in field definitions and must never
// be renumbered. Codes below 100 are reserved for built-ins; hosts register
// extra types from 100 up.
const (
	Text             = 1
	Textarea         = 2
	Email            = 3
	Checkbox         = 4
	CheckboxMultiple = 5
	Select           = 6
	SelectMultiple   = 7
	RadioMultiple    = 8
	File             = 9
	Date             = 10
	DateTime         = 11
	Hidden           = 12
	Number           = 13
	URL              = 14
	Integer          = 15
)

// MaxValueLength caps the stored length of any single field value.
const MaxValueLength = 2000

// ParseFunc validates raw submitted text and returns the normalized form
// that will be persisted. It is never called for file-type fields.
type ParseFunc func(raw string) (string, error)

// Descriptor describes one field type: how to parse its values and which
// control/filter strategies apply to it.
type Descriptor struct {
	Code int
	Name string

	// Parse validates and normalizes a raw value. nil means identity
	// (subject only to the length cap).
	Parse ParseFunc

	// SupportsChoices marks types whose values come from an admin-defined
	// choice list.
	SupportsChoices bool

	// Multiple marks types that accept several values per submission.
	Multiple bool

	// IsDate marks date and datetime types (range-filterable).
	IsDate bool

	// IsFile marks upload types whose stored value is a storage path.
	IsFile bool
}

// Builtins returns descriptors for the fifteen standard field types.
func Builtins() []Descriptor {
	return []Descriptor{
		{Code: Text, Name: "Single line text", Parse: parseText},
		{Code: Textarea, Name: "Multi line text", Parse: parseText},
		{Code: Email, Name: "Email", Parse: parseEmail},
		{Code: Number, Name: "Number with decimal", Parse: parseNumber},
		{Code: URL, Name: "URL", Parse: parseURL},
		{Code: Checkbox, Name: "Check box", Parse: parseBool},
		{Code: CheckboxMultiple, Name: "Check boxes", SupportsChoices: true, Multiple: true},
		{Code: Select, Name: "Drop down", SupportsChoices: true},
		{Code: SelectMultiple, Name: "Multi select", SupportsChoices: true, Multiple: true},
		{Code: RadioMultiple, Name: "Radio buttons", SupportsChoices: true},
		{Code: File, Name: "File upload", IsFile: true},
		{Code: Date, Name: "Date", Parse: parseDate, IsDate: true},
		{Code: DateTime, Name: "Date/time", Parse: parseDateTime, IsDate: true},
		{Code: Hidden, Name: "Hidden", Parse: parseText},
		{Code: Integer, Name: "Number without decimal", Parse: parseInteger},
	}
}

// DateLayout is the storage and wire layout for date values.
const DateLayout = "2006-01-02"

// DateTimeLayouts are accepted inputs for datetime values; the first is the
// storage layout.
var DateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// --- built-in parsers ---

func parseText(raw string) (string, error) {
	if len(raw) > MaxValueLength {
		return "", errs.Newf(errs.ErrKindInvalidInput, "value exceeds %d characters", MaxValueLength)
	}
	return raw, nil
}

func parseEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "enter a valid email address", err)
	}
	return addr.Address, nil
}

func parseNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "enter a number", err)
	}
	return raw, nil
}

func parseInteger(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "enter a whole number", err)
	}
	return raw, nil
}

func parseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "enter a valid URL")
	}
	return raw, nil
}

// parseBool normalizes checkbox input to the stored "True"/"False" strings.
// The literal "False" string is the sentinel for an explicitly unchecked box.
func parseBool(raw string) (string, error) {
	switch strings.TrimSpace(raw) {
	case "on", "true", "True", "1":
		return "True", nil
	case "", "off", "false", "False", "0":
		return "False", nil
	}
	return "", errs.New(errs.ErrKindInvalidInput, "enter a yes or no value")
}

func parseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "enter a valid date", err)
	}
	return t.Format(DateLayout), nil
}

func parseDateTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range DateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateTimeLayouts[0]), nil
		}
	}
	return "", errs.New(errs.ErrKindInvalidInput, "enter a valid date and time")
}
