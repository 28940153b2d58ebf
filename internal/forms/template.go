package forms

import "strings"

// evalDefault substitutes {{key}} placeholders in a default-value template
// with entries from ctx. Only keys present in ctx are substitutable; an
// unknown key renders as the empty string. Text without placeholders
// passes through unchanged, so plain defaults cost nothing.
func evalDefault(def string, ctx map[string]string) string {
	if !strings.Contains(def, "{{") {
		return def
	}

	var b strings.Builder
	for {
		start := strings.Index(def, "{{")
		if start < 0 {
			b.WriteString(def)
			return b.String()
		}
		end := strings.Index(def[start:], "}}")
		if end < 0 {
			b.WriteString(def)
			return b.String()
		}
		end += start

		b.WriteString(def[:start])
		key := strings.TrimSpace(def[start+2 : end])
		b.WriteString(ctx[key])
		def = def[end+2:]
	}
}
