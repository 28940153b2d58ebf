package entries

import (
	"strings"
	"time"
)

// FilterOp identifies a filter verb. The numeric values appear in posted
// filter forms and must stay stable.
type FilterOp int

const (
	FilterNone FilterOp = iota

	// Free text.
	FilterContains
	FilterNotContains
	FilterEquals
	FilterNotEquals

	// Single-valued choice fields.
	FilterEqualsAny
	FilterNotEqualsAny

	// Multi-valued choice fields.
	FilterContainsAny
	FilterContainsAll
	FilterNotContainsAny
	FilterNotContainsAll

	// Date, datetime, and the entry timestamp pseudo-field.
	FilterBetween
)

var filterNames = map[FilterOp]string{
	FilterContains:       "Contains",
	FilterNotContains:    "Doesn't contain",
	FilterEquals:         "Equals",
	FilterNotEquals:      "Doesn't equal",
	FilterEqualsAny:      "Equals any",
	FilterNotEqualsAny:   "Doesn't equal any",
	FilterContainsAny:    "Contains any",
	FilterContainsAll:    "Contains all",
	FilterNotContainsAny: "Doesn't contain any",
	FilterNotContainsAll: "Doesn't contain all",
	FilterBetween:        "Is between",
}

func (op FilterOp) String() string {
	if name, ok := filterNames[op]; ok {
		return name
	}
	return "None"
}

// matchText applies a free-text verb. Comparisons are case-insensitive.
func matchText(op FilterOp, arg, value string) bool {
	v := strings.ToLower(value)
	a := strings.ToLower(arg)
	switch op {
	case FilterContains:
		return strings.Contains(v, a)
	case FilterNotContains:
		return !strings.Contains(v, a)
	case FilterEquals:
		return v == a
	case FilterNotEquals:
		return v != a
	}
	return true
}

// matchMembership applies a single-choice verb: the stored value against
// the posted selection set.
func matchMembership(op FilterOp, args []string, value string) bool {
	in := false
	for _, a := range args {
		if a == value {
			in = true
			break
		}
	}
	switch op {
	case FilterEqualsAny:
		return in
	case FilterNotEqualsAny:
		return !in
	}
	return true
}

// matchSet applies a multi-choice verb: the posted selection set against
// the stored value split on the choice delimiter. Order and duplicates are
// insignificant.
func matchSet(op FilterOp, args []string, value string) bool {
	stored := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			stored[part] = true
		}
	}

	any := false
	all := len(args) > 0
	for _, a := range args {
		if stored[a] {
			any = true
		} else {
			all = false
		}
	}

	switch op {
	case FilterContainsAny:
		return any
	case FilterContainsAll:
		return all
	case FilterNotContainsAny:
		return !any
	case FilterNotContainsAll:
		return !all
	}
	return true
}

// matchRange applies the inclusive is-between verb. A nil bound is open.
func matchRange(from, to *time.Time, v time.Time) bool {
	if from != nil && v.Before(*from) {
		return false
	}
	if to != nil && v.After(*to) {
		return false
	}
	return true
}
