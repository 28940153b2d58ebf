// Package local provides a filesystem implementation of filestore.Store,
// for deployments that keep uploads under a configured root directory.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/filestore"
)

// Driver stores objects as plain files under root/bucket/key.
type Driver struct {
	root string
}

// New creates the root directory if needed and returns a Driver.
func New(root string) (*Driver, error) {
	if root == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "upload root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create upload root", err)
	}
	return &Driver{root: root}, nil
}

// --- filestore.Store implementation ---

// Ping verifies the root directory is accessible.
func (d *Driver) Ping(_ context.Context) error {
	if _, err := os.Stat(d.root); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "upload root inaccessible", err)
	}
	return nil
}

// Close is a no-op for the filesystem driver.
func (d *Driver) Close() error {
	return nil
}

// Put writes content to key inside bucket, creating subdirectories as
// needed. The file is synced before returning so the stored path is
// durable before the caller commits any record referencing it.
func (d *Driver) Put(_ context.Context, bucket, key string, content io.Reader, _ int64, _ string) (string, error) {
	full, err := d.resolve(bucket, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "failed to create object directory", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "failed to create object file", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(full)
		return "", errs.Wrap(errs.ErrKindQueryFailed, "failed to write object", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", errs.Wrap(errs.ErrKindQueryFailed, "failed to sync object", err)
	}
	if err := f.Close(); err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "failed to close object", err)
	}
	return key, nil
}

// Get opens a streaming handle to the object at key inside bucket.
func (d *Driver) Get(_ context.Context, bucket, key string) (filestore.Object, error) {
	full, err := d.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "object not found", err)
		}
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to open object", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to stat object", err)
	}
	return &object{
		ReadCloser: f,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         stat.Size(),
			LastModified: stat.ModTime(),
		},
	}, nil
}

// Stat returns metadata for the object at key inside bucket.
func (d *Driver) Stat(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	full, err := d.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "object not found", err)
		}
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to stat object", err)
	}
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

// Delete removes the object at key inside bucket.
func (d *Driver) Delete(_ context.Context, bucket, key string) error {
	full, err := d.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrKindQueryFailed, "failed to delete object", err)
	}
	return nil
}

// PresignGetURL is unsupported for the filesystem driver; downloads go
// through the application's own file handler.
func (d *Driver) PresignGetURL(context.Context, string, string, time.Duration) (string, error) {
	return "", errs.New(errs.ErrKindInvalidInput, "local filestore cannot presign URLs")
}

// resolve joins root/bucket/key and rejects traversal outside the root.
func (d *Driver) resolve(bucket, key string) (string, error) {
	full := filepath.Join(d.root, bucket, filepath.FromSlash(key))
	base := filepath.Clean(d.root) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(full), base) {
		return "", errs.Newf(errs.ErrKindInvalidInput, "object key %q escapes upload root", key)
	}
	return full, nil
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
