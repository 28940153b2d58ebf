package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalDefault(t *testing.T) {
	ctx := map[string]string{
		"username": "ada",
		"email":    "ada@example.com",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"single key", "{{username}}", "ada"},
		{"key with spaces", "{{ username }}", "ada"},
		{"mixed text", "hi {{username}}, mail {{email}}", "hi ada, mail ada@example.com"},
		{"unknown key renders empty", "hi {{nope}}!", "hi !"},
		{"unterminated passes through", "hi {{username", "hi {{username"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalDefault(tt.in, ctx))
		})
	}
}

func TestEvalDefaultNilContext(t *testing.T) {
	assert.Equal(t, "hi ", evalDefault("hi {{user}}", nil))
}
