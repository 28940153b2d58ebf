package schema

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/formforge/formforge/internal/errs"
)

// Slugify lowercases s and reduces it to ascii letters, digits, and single
// hyphens. Used for form slugs.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// FieldSlug derives the wire-format name for a field label. Field slugs use
// underscores so they stay valid identifiers in posted data and exports:
// "First Name" becomes "first_name".
func FieldSlug(label string) string {
	return strings.ReplaceAll(Slugify(label), "-", "_")
}

// UniqueSlug returns base, or base with an incrementing "-N" suffix when
// exists reports a collision. On each retry the previous numeric suffix is
// stripped before the next is appended, and the base is truncated when the
// suffix would overflow maxLen.
//
// The check-then-act sequence is not transactional: two concurrent inserts
// of the same base can still collide at the store's uniqueness constraint.
// Acceptable for low-concurrency admin edits.
func UniqueSlug(base string, maxLen int, exists func(string) bool) (string, error) {
	if base == "" {
		base = "field"
	}
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	slug := base
	for i := 0; ; i++ {
		if i > 0 {
			if i > 1 {
				idx := strings.LastIndex(slug, "-")
				if idx > 0 {
					slug = slug[:idx]
				}
			}
			suffix := "-" + strconv.Itoa(i)
			if len(slug)+len(suffix) > maxLen {
				cut := maxLen - len(suffix)
				if cut <= 0 {
					return "", errs.Newf(errs.ErrKindInvalidInput,
						"cannot derive a unique slug from %q within %d characters", base, maxLen)
				}
				slug = slug[:cut]
			}
			slug += suffix
		}
		if !exists(slug) {
			return slug, nil
		}
	}
}
