package schema

import "strings"

// Default quoting characters for choice strings. The open and close
// characters are configured independently but default to the same rune,
// so admins can write `an option, with commas` inside a choice list.
const (
	DefaultQuote   = '`'
	DefaultUnquote = '`'
)

// Choice is one selectable option. Value and Label are both the trimmed
// substring from the raw choice string.
type Choice struct {
	Value string
	Label string
}

// ParseChoices parses a comma separated choice string into ordered choices.
//
// A quote character toggles a quoted mode in which commas are literal; the
// unquote character ends it. On an unquoted comma the accumulated buffer is
// flushed as one choice, trimmed, with empty buffers dropped. The final
// buffer is flushed at end of input. An unterminated quote silently treats
// the rest of the string as quoted.
func ParseChoices(raw string, quote, unquote rune) []Choice {
	var out []Choice
	var buf strings.Builder
	quoted := false

	flush := func() {
		choice := strings.TrimSpace(buf.String())
		buf.Reset()
		if choice != "" {
			out = append(out, Choice{Value: choice, Label: choice})
		}
	}

	for _, char := range raw {
		switch {
		case !quoted && char == quote:
			quoted = true
		case quoted && char == unquote:
			quoted = false
		case char == ',' && !quoted:
			flush()
		default:
			buf.WriteRune(char)
		}
	}
	flush()
	return out
}

// ChoiceValues returns just the values of choices, for set-membership checks.
func ChoiceValues(choices []Choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.Value
	}
	return out
}
