// Package cloud implements the storage backend over cloud object storage
// using a gocloud.dev blob.Bucket (S3, Azure, GCS, or in-memory buckets).
package cloud

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/archivekit/ocfl/backend"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Backend is a storage backend for a blob.Bucket. Object keys are used
// directly as backend paths; "directories" exist only as key prefixes.
type Backend struct {
	bucket *blob.Bucket
	log    *slog.Logger
}

var _ backend.Interface = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets a logger for debug-level operation logging.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// NewBackend returns a Backend for the bucket.
func NewBackend(bucket *blob.Bucket, opts ...Option) *Backend {
	b := &Backend{bucket: bucket}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	b.debugLog(ctx, "read", "name", name)
	r, err := b.bucket.NewReader(ctx, name, nil)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: mapErr(err)}
	}
	return r, nil
}

// Write writes src to the named key. Object stores commit a write only when
// the writer is closed without error, so a failed upload is never visible.
func (b *Backend) Write(ctx context.Context, name string, src io.Reader, overwrite bool) (int64, error) {
	b.debugLog(ctx, "write", "name", name)
	if !overwrite {
		exists, err := b.bucket.Exists(ctx, name)
		if err != nil {
			return 0, &fs.PathError{Op: "write", Path: name, Err: mapErr(err)}
		}
		if exists {
			return 0, &fs.PathError{Op: "write", Path: name, Err: backend.ErrExists}
		}
	}
	w, err := b.bucket.NewWriter(ctx, name, nil)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: mapErr(err)}
	}
	n, err := io.Copy(w, src)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, &fs.PathError{Op: "write", Path: name, Err: mapErr(err)}
	}
	return n, nil
}

func (b *Backend) List(ctx context.Context, dir string, recursive bool) ([]backend.Listing, error) {
	b.debugLog(ctx, "list", "name", dir, "recursive", recursive)
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}
	opts := &blob.ListOptions{Prefix: prefix}
	if !recursive {
		opts.Delimiter = "/"
	}
	var listings []backend.Listing
	iter := b.bucket.List(opts)
	for {
		item, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &fs.PathError{Op: "list", Path: dir, Err: mapErr(err)}
		}
		rel := strings.TrimPrefix(item.Key, prefix)
		if item.IsDir {
			listings = append(listings, backend.Listing{
				Type: backend.ListingDir,
				Path: strings.TrimSuffix(rel, "/"),
			})
			continue
		}
		listings = append(listings, backend.Listing{Type: backend.ListingFile, Path: rel})
		if recursive {
			listings = appendParentDirs(listings, rel)
		}
	}
	if len(listings) == 0 && dir != "." {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: backend.ErrNotExist}
	}
	return listings, nil
}

// appendParentDirs adds directory listings for rel's parents if not already
// present. Object stores don't list prefixes as entries during recursive
// listing.
func appendParentDirs(listings []backend.Listing, rel string) []backend.Listing {
	for {
		i := strings.LastIndexByte(rel, '/')
		if i < 0 {
			return listings
		}
		rel = rel[:i]
		found := false
		for _, l := range listings {
			if l.IsDir() && l.Path == rel {
				found = true
				break
			}
		}
		if !found {
			listings = append(listings, backend.Listing{Type: backend.ListingDir, Path: rel})
		}
	}
}

// Move copies src to dst and deletes src. Object stores have no rename:
// a directory move copies every key under the prefix.
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	b.debugLog(ctx, "move", "src", src, "dst", dst)
	exists, err := b.bucket.Exists(ctx, src)
	if err != nil {
		return &fs.PathError{Op: "move", Path: src, Err: mapErr(err)}
	}
	if exists {
		return b.moveKey(ctx, src, dst)
	}
	// directory move
	iter := b.bucket.List(&blob.ListOptions{Prefix: src + "/"})
	moved := false
	for {
		item, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &fs.PathError{Op: "move", Path: src, Err: mapErr(err)}
		}
		rel := strings.TrimPrefix(item.Key, src+"/")
		if err := b.moveKey(ctx, item.Key, dst+"/"+rel); err != nil {
			return err
		}
		moved = true
	}
	if !moved {
		return &fs.PathError{Op: "move", Path: src, Err: backend.ErrNotExist}
	}
	return nil
}

func (b *Backend) moveKey(ctx context.Context, src, dst string) error {
	exists, err := b.bucket.Exists(ctx, dst)
	if err != nil {
		return &fs.PathError{Op: "move", Path: dst, Err: mapErr(err)}
	}
	if exists {
		return &fs.PathError{Op: "move", Path: dst, Err: backend.ErrExists}
	}
	if err := b.bucket.Copy(ctx, dst, src, nil); err != nil {
		return &fs.PathError{Op: "move", Path: src, Err: mapErr(err)}
	}
	if err := b.bucket.Delete(ctx, src); err != nil {
		return &fs.PathError{Op: "move", Path: src, Err: mapErr(err)}
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	b.debugLog(ctx, "delete", "name", name)
	if err := b.bucket.Delete(ctx, name); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: mapErr(err)}
	}
	return nil
}

func (b *Backend) DeleteDir(ctx context.Context, dir string) error {
	b.debugLog(ctx, "delete_dir", "name", dir)
	iter := b.bucket.List(&blob.ListOptions{Prefix: dir + "/"})
	for {
		item, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &fs.PathError{Op: "delete_dir", Path: dir, Err: mapErr(err)}
		}
		if err := b.bucket.Delete(ctx, item.Key); err != nil {
			return &fs.PathError{Op: "delete_dir", Path: item.Key, Err: mapErr(err)}
		}
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	exists, err := b.bucket.Exists(ctx, name)
	if err != nil {
		return false, &fs.PathError{Op: "exists", Path: name, Err: mapErr(err)}
	}
	return exists, nil
}

func (b *Backend) debugLog(ctx context.Context, op string, args ...any) {
	if b.log != nil {
		b.log.DebugContext(ctx, op, args...)
	}
}

func mapErr(err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return errors.Join(err, backend.ErrNotExist)
	}
	return err
}
