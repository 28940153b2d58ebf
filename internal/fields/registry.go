package fields

import (
	"sort"

	"github.com/formforge/formforge/internal/errs"
)

// Registry maps field type codes to descriptors. It is populated once
// during startup and treated as read-only afterwards; it is not safe for
// concurrent mutation.
type Registry struct {
	byCode map[int]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCode: make(map[int]Descriptor)}
}

// Default returns a registry pre-populated with the built-in types.
func Default() *Registry {
	r := NewRegistry()
	for _, d := range Builtins() {
		// Built-in codes never collide.
		_ = r.Register(d)
	}
	return r
}

// Register adds a descriptor. Registering a code twice is a configuration
// error and fails fast.
func (r *Registry) Register(d Descriptor) error {
	if _, ok := r.byCode[d.Code]; ok {
		return errs.Newf(errs.ErrKindDuplicate, "field type %d already registered", d.Code)
	}
	r.byCode[d.Code] = d
	return nil
}

// Resolve looks up the descriptor for code.
func (r *Registry) Resolve(code int) (Descriptor, error) {
	d, ok := r.byCode[code]
	if !ok {
		return Descriptor{}, errs.Newf(errs.ErrKindNotFound, "unknown field type %d", code)
	}
	return d, nil
}

// Descriptors returns all registered descriptors ordered by code, for
// building admin type pickers.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byCode))
	for _, d := range r.byCode {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// --- grouping queries ---

// IsChoice reports whether code is a choice-backed type.
func (r *Registry) IsChoice(code int) bool {
	return r.byCode[code].SupportsChoices
}

// IsMultiple reports whether code accepts several values per submission.
func (r *Registry) IsMultiple(code int) bool {
	return r.byCode[code].Multiple
}

// IsDate reports whether code is a date or datetime type.
func (r *Registry) IsDate(code int) bool {
	return r.byCode[code].IsDate
}

// IsFile reports whether code is an upload type.
func (r *Registry) IsFile(code int) bool {
	return r.byCode[code].IsFile
}
