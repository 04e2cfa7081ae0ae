// Package backend defines the storage abstraction used by the OCFL engine. A
// backend exposes a flat namespace of '/'-separated paths relative to a
// configured storage root; implementations cover the local filesystem and
// cloud object stores.
package backend

import (
	"context"
	"errors"
	"io"
	"io/fs"
)

var (
	// ErrNotExist is reported when a path doesn't exist. It is
	// io/fs.ErrNotExist itself, so errors.Is works with either name.
	ErrNotExist = fs.ErrNotExist
	// ErrExists is reported when a path already exists and overwriting is
	// disallowed. It is io/fs.ErrExist itself.
	ErrExists = fs.ErrExist
	// ErrNotDir is reported when a directory operation is applied to a
	// non-directory.
	ErrNotDir = errors.New("not a directory")
)

// ListingType distinguishes entries returned by List.
type ListingType int

const (
	ListingFile ListingType = iota
	ListingDir
	ListingOther
)

// Listing is a single entry from List. Path always uses '/' as the
// separator, regardless of host OS, and is relative to the listed directory.
type Listing struct {
	Type ListingType
	Path string
}

// IsFile returns true if the listing is a regular file.
func (l Listing) IsFile() bool { return l.Type == ListingFile }

// IsDir returns true if the listing is a directory.
func (l Listing) IsDir() bool { return l.Type == ListingDir }

// Interface is the uniform storage surface used by the engine. All paths are
// '/'-separated and relative to the backend's root. Failed operations return
// errors wrapping ErrNotExist, ErrExists, or the backend's underlying I/O
// error.
type Interface interface {
	// Read opens the named file for reading.
	Read(ctx context.Context, name string) (io.ReadCloser, error)

	// Write writes src to the named file, creating parent directories as
	// needed. If overwrite is false and the file exists, Write fails with
	// ErrExists. Backends that support it write through a temporary path
	// and rename, so a partial write is never visible under name.
	Write(ctx context.Context, name string, src io.Reader, overwrite bool) (int64, error)

	// List returns entries under dir. If recursive is true, entries from
	// all subdirectories are included, with paths relative to dir.
	List(ctx context.Context, dir string, recursive bool) ([]Listing, error)

	// Move renames src to dst. Implementations use a single atomic rename
	// where the backing store supports one. Move fails with ErrExists if
	// dst exists.
	Move(ctx context.Context, src, dst string) error

	// Delete removes the named file.
	Delete(ctx context.Context, name string) error

	// DeleteDir removes the named directory and everything under it. It
	// is not an error if the directory doesn't exist.
	DeleteDir(ctx context.Context, dir string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// ReadAll returns the contents of the named file.
func ReadAll(ctx context.Context, b Interface, name string) ([]byte, error) {
	f, err := b.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Copy copies the file src to dst within the same backend.
func Copy(ctx context.Context, b Interface, dst, src string, overwrite bool) (int64, error) {
	f, err := b.Read(ctx, src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return b.Write(ctx, dst, f, overwrite)
}
