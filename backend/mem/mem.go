// Package mem implements the storage backend over an in-memory map. It is
// used in tests and as a reference implementation of the backend contract.
package mem

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/archivekit/ocfl/backend"
)

// Backend stores file contents in a map keyed by '/'-separated paths.
// Directories are implicit: they exist if any stored path has them as a
// prefix. A Backend is safe for concurrent use.
type Backend struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ backend.Interface = (*Backend)(nil)

// NewBackend returns an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{files: map[string][]byte{}}
}

func (b *Backend) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	cont, ok := b.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: backend.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(cont)), nil
}

func (b *Backend) Write(ctx context.Context, name string, src io.Reader, overwrite bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if !fs.ValidPath(name) || name == "." {
		return 0, &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	// read before locking: src may itself be backed by b
	cont, err := io.ReadAll(src)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.files[name]; exists && !overwrite {
		return 0, &fs.PathError{Op: "write", Path: name, Err: backend.ErrExists}
	}
	b.files[name] = cont
	return int64(len(cont)), nil
}

func (b *Backend) List(ctx context.Context, dir string, recursive bool) ([]backend.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: err}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}
	seen := map[string]backend.ListingType{}
	var found bool
	for name := range b.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		found = true
		rel := strings.TrimPrefix(name, prefix)
		if recursive {
			seen[rel] = backend.ListingFile
			// include intermediate directories
			for d := path.Dir(rel); d != "."; d = path.Dir(d) {
				seen[d] = backend.ListingDir
			}
			continue
		}
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			seen[rel[:i]] = backend.ListingDir
		} else {
			seen[rel] = backend.ListingFile
		}
	}
	if !found && dir != "." {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: backend.ErrNotExist}
	}
	listings := make([]backend.Listing, 0, len(seen))
	for p, typ := range seen {
		listings = append(listings, backend.Listing{Type: typ, Path: p})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].Path < listings[j].Path })
	return listings, nil
}

func (b *Backend) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return &fs.PathError{Op: "move", Path: src, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// file move
	if cont, ok := b.files[src]; ok {
		if _, exists := b.files[dst]; exists {
			return &fs.PathError{Op: "move", Path: dst, Err: backend.ErrExists}
		}
		b.files[dst] = cont
		delete(b.files, src)
		return nil
	}
	// directory move
	srcPrefix := src + "/"
	dstPrefix := dst + "/"
	var moved []string
	for name := range b.files {
		if strings.HasPrefix(name, srcPrefix) {
			moved = append(moved, name)
		}
		if strings.HasPrefix(name, dstPrefix) || name == dst {
			return &fs.PathError{Op: "move", Path: dst, Err: backend.ErrExists}
		}
	}
	if len(moved) == 0 {
		return &fs.PathError{Op: "move", Path: src, Err: backend.ErrNotExist}
	}
	for _, name := range moved {
		b.files[dstPrefix+strings.TrimPrefix(name, srcPrefix)] = b.files[name]
		delete(b.files, name)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[name]; !ok {
		return &fs.PathError{Op: "delete", Path: name, Err: backend.ErrNotExist}
	}
	delete(b.files, name)
	return nil
}

func (b *Backend) DeleteDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return &fs.PathError{Op: "delete_dir", Path: dir, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := dir + "/"
	for name := range b.files {
		if strings.HasPrefix(name, prefix) {
			delete(b.files, name)
		}
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &fs.PathError{Op: "exists", Path: name, Err: err}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.files[name]
	return ok, nil
}

// Snapshot returns a copy of all stored paths and contents. Tests use it to
// compare backend state before and after failed operations.
func (b *Backend) Snapshot() map[string][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := make(map[string][]byte, len(b.files))
	for name, cont := range b.files {
		snap[name] = append([]byte{}, cont...)
	}
	return snap
}
