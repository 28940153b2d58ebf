package schema

import "context"

// Store is the persistence port for form schemas. SQL implementations live
// in internal/store; tests use the in-memory fake.
//
// Implementations are responsible for:
//   - assigning unique slugs on create (via Slugify/FieldSlug + UniqueSlug
//     against their current contents),
//   - append order assignment when Field.Order is negative,
//   - compacting field order on delete, inside the delete transaction.
type Store interface {
	// CreateForm persists f, assigning ID and a unique slug from Title.
	CreateForm(ctx context.Context, f *Form) error

	// UpdateForm persists changes to a form's own attributes (not fields).
	UpdateForm(ctx context.Context, f *Form) error

	// DeleteForm removes the form, its fields, and all entries.
	DeleteForm(ctx context.Context, formID int64) error

	// GetForm loads a form with its fields ordered by Order.
	GetForm(ctx context.Context, id int64) (*Form, error)

	// GetFormBySlug loads a form by slug with its fields ordered by Order.
	GetFormBySlug(ctx context.Context, slug string) (*Form, error)

	// ListForms returns all forms without their fields.
	ListForms(ctx context.Context) ([]Form, error)

	// CreateField persists fd under its form, assigning ID, a slug unique
	// within the form, and append order when fd.Order < 0.
	CreateField(ctx context.Context, fd *Field) error

	// UpdateField persists changes to a field definition.
	UpdateField(ctx context.Context, fd *Field) error

	// DeleteField removes the field and decrements the order of all fields
	// with a higher order in the same form, keeping the sequence dense.
	DeleteField(ctx context.Context, formID, fieldID int64) error
}
