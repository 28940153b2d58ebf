// Package filestore defines the unified interface for the blob backends
// that hold uploaded form files.
//
// All providers (local directory, MinIO, …) implement the Store interface.
// Callers depend only on this package — never on a specific provider
// package.
//
// Usage:
//
//	store, err := local.New("/var/lib/formforge/uploads")
//	if err != nil { ... }
//	path, err := store.Put(ctx, "forms", "d1b2/resume.pdf", file, -1, "application/pdf")
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is the single interface all blob storage providers must implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// Put writes content to key inside bucket and returns the stored key.
	// The key may contain arbitrary subdirectories; providers create them
	// as needed. Put must complete before the caller commits any record
	// referencing the key. size may be -1 when unknown.
	Put(ctx context.Context, bucket, key string, content io.Reader, size int64, contentType string) (string, error)

	// Get opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	Get(ctx context.Context, bucket, key string) (Object, error)

	// Stat returns metadata for the object at key inside bucket without
	// downloading its content.
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// Delete removes the object at key inside bucket.
	Delete(ctx context.Context, bucket, key string) error

	// PresignGetURL returns a time-limited URL that allows downloading the
	// object without credentials. Providers that cannot produce one return
	// errs.ErrKindInvalidInput.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
