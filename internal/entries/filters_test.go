package entries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchText_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name  string
		op    FilterOp
		arg   string
		value string
		want  bool
	}{
		{"contains hit", FilterContains, "ada", "Ada Lovelace", true},
		{"contains miss", FilterContains, "grace", "Ada Lovelace", false},
		{"not contains", FilterNotContains, "grace", "Ada Lovelace", true},
		{"equals ignores case", FilterEquals, "ADA", "ada", true},
		{"equals miss", FilterEquals, "ada", "ada lovelace", false},
		{"not equals", FilterNotEquals, "ada", "grace", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchText(tt.op, tt.arg, tt.value))
		})
	}
}

func TestMatchMembership(t *testing.T) {
	args := []string{"red", "blue"}

	assert.True(t, matchMembership(FilterEqualsAny, args, "red"))
	assert.False(t, matchMembership(FilterEqualsAny, args, "green"))
	assert.False(t, matchMembership(FilterNotEqualsAny, args, "blue"))
	assert.True(t, matchMembership(FilterNotEqualsAny, args, "green"))
}

func TestMatchSet(t *testing.T) {
	tests := []struct {
		name  string
		op    FilterOp
		args  []string
		value string
		want  bool
	}{
		{"contains any hit", FilterContainsAny, []string{"red", "green"}, "blue, red", true},
		{"contains any miss", FilterContainsAny, []string{"green"}, "blue, red", false},
		{"contains all hit", FilterContainsAll, []string{"red", "blue"}, "blue, red", true},
		{"contains all miss", FilterContainsAll, []string{"red", "green"}, "blue, red", false},
		{"not contains any", FilterNotContainsAny, []string{"green"}, "blue, red", true},
		{"not contains all", FilterNotContainsAll, []string{"red", "green"}, "blue, red", true},
		{"duplicates insignificant", FilterContainsAll, []string{"red"}, "red, red", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchSet(tt.op, tt.args, tt.value))
		})
	}
}

func TestMatchRange(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	from, to := day(10), day(20)

	assert.True(t, matchRange(&from, &to, day(10)), "lower bound inclusive")
	assert.True(t, matchRange(&from, &to, day(20)), "upper bound inclusive")
	assert.False(t, matchRange(&from, &to, day(9)))
	assert.False(t, matchRange(&from, &to, day(21)))
	assert.True(t, matchRange(nil, &to, day(1)), "open lower bound")
	assert.True(t, matchRange(&from, nil, day(30)), "open upper bound")
}

func TestParseStoredDate(t *testing.T) {
	got, ok := parseStoredDate("2026-03-01 09:30:00")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, ok = parseStoredDate("next tuesday")
	assert.False(t, ok)

	_, ok = parseStoredDate("")
	assert.False(t, ok)
}
