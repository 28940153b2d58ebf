package forms

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/filestore"
)

// Save persists the validated submission as one entry plus one value row
// per visible field. Uploads are written to blobs under a fresh random
// directory before any rows are committed; the stored value of a file
// field is its object key. In edit mode existing rows are updated in
// place and a file field with no new upload keeps its stored key.
func (f *BoundForm) Save(ctx context.Context, store entries.Store, blobs filestore.Store, bucket string, now time.Time) (*entries.Entry, error) {
	if !f.validated {
		return nil, errs.New(errs.ErrKindInvalidInput, "form has not been validated")
	}
	if len(f.errors) > 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "form has validation errors")
	}

	sub := entries.Submission{
		FormID:    f.form.ID,
		EntryTime: now,
	}
	if f.opts.PriorEntry != nil {
		sub.EntryID = f.opts.PriorEntry.ID
		sub.EntryTime = f.opts.PriorEntry.EntryTime
	}

	uploadDir := uuid.NewString()

	for _, c := range f.controls {
		value := f.cleaned[c.Field.Slug]

		if c.Descriptor.IsFile {
			upload, ok := f.opts.Files[c.Field.Slug]
			if ok {
				if blobs == nil {
					return nil, errs.New(errs.ErrKindInvalidInput, "no file store configured for upload")
				}
				key := path.Join(uploadDir, sanitizeFilename(upload.Filename))
				stored, err := blobs.Put(ctx, bucket, key, upload.Content, upload.Size, upload.ContentType)
				if err != nil {
					return nil, err
				}
				value = stored
			} else if prior, found := f.priorByField[c.Field.ID]; found {
				// No replacement upload; keep the stored key.
				value = prior.Value
			}
		}

		if prior, found := f.priorByField[c.Field.ID]; found {
			prior.Value = value
			sub.Updates = append(sub.Updates, prior)
			continue
		}
		sub.Inserts = append(sub.Inserts, entries.FieldValue{
			FieldID: c.Field.ID,
			Value:   value,
		})
	}

	return store.SaveSubmission(ctx, &sub)
}

// sanitizeFilename strips any path component and characters that are not
// safe in an object key.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
