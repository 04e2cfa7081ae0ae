// Package local implements the storage backend over a local filesystem
// directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/archivekit/ocfl/backend"
	"github.com/karrick/godirwalk"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// Backend is a storage backend rooted at a local directory.
type Backend struct {
	root string // absolute, os-specific path
}

var _ backend.Interface = (*Backend)(nil)

// NewBackend returns a Backend rooted at dir.
func NewBackend(dir string) (*Backend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("new backend: %w", err)
	}
	return &Backend{root: abs}, nil
}

// Root returns the backend's root as an os-specific path.
func (b *Backend) Root() string { return b.root }

func (b *Backend) osPath(name string) (string, error) {
	if name == "." {
		return b.root, nil
	}
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return filepath.Join(b.root, filepath.FromSlash(name)), nil
}

func (b *Backend) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	fullPath, err := b.osPath(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: underlying(err)}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "read", Path: name, Err: backend.ErrNotDir}
	}
	return f, nil
}

// Write writes src to name through a temporary file in the same directory,
// renaming it into place so partial writes are never visible.
func (b *Backend) Write(ctx context.Context, name string, src io.Reader, overwrite bool) (int64, error) {
	fullPath, err := b.osPath(name)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if !overwrite {
		if _, err := os.Stat(fullPath); err == nil {
			return 0, &fs.PathError{Op: "write", Path: name, Err: backend.ErrExists}
		}
	}
	parent := filepath.Dir(fullPath)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	tmp, err := os.CreateTemp(parent, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	n, err := io.Copy(tmp, src)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), filePerm)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), fullPath)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return n, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	return n, nil
}

func (b *Backend) List(ctx context.Context, dir string, recursive bool) ([]backend.Listing, error) {
	fullPath, err := b.osPath(dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: err}
	}
	if !recursive {
		entries, err := os.ReadDir(fullPath)
		if err != nil {
			return nil, &fs.PathError{Op: "list", Path: dir, Err: underlying(err)}
		}
		listings := make([]backend.Listing, 0, len(entries))
		for _, e := range entries {
			listings = append(listings, backend.Listing{
				Type: listingType(e.IsDir(), e.Type().IsRegular()),
				Path: e.Name(),
			})
		}
		return listings, nil
	}
	var listings []backend.Listing
	err = godirwalk.Walk(fullPath, &godirwalk.Options{
		Unsorted: false,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if osPathname == fullPath {
				return nil
			}
			rel, err := filepath.Rel(fullPath, osPathname)
			if err != nil {
				return err
			}
			listings = append(listings, backend.Listing{
				Type: listingType(de.IsDir(), de.IsRegular()),
				Path: filepath.ToSlash(rel),
			})
			return nil
		},
	})
	if err != nil {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: underlying(err)}
	}
	return listings, nil
}

// Move renames src to dst with a single os.Rename. Parent directories for
// dst are created as needed.
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	srcPath, err := b.osPath(src)
	if err != nil {
		return err
	}
	dstPath, err := b.osPath(dst)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &fs.PathError{Op: "move", Path: src, Err: err}
	}
	if _, err := os.Stat(dstPath); err == nil {
		return &fs.PathError{Op: "move", Path: dst, Err: backend.ErrExists}
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), dirPerm); err != nil {
		return &fs.PathError{Op: "move", Path: dst, Err: err}
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return &fs.PathError{Op: "move", Path: src, Err: underlying(err)}
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	fullPath, err := b.osPath(name)
	if err != nil {
		return err
	}
	if name == "." {
		return &fs.PathError{Op: "delete", Path: name, Err: errors.New("cannot remove top-level directory")}
	}
	if err := ctx.Err(); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: err}
	}
	if err := os.Remove(fullPath); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: underlying(err)}
	}
	return nil
}

func (b *Backend) DeleteDir(ctx context.Context, dir string) error {
	fullPath, err := b.osPath(dir)
	if err != nil {
		return err
	}
	if dir == "." {
		return &fs.PathError{Op: "delete_dir", Path: dir, Err: errors.New("cannot remove top-level directory")}
	}
	if err := ctx.Err(); err != nil {
		return &fs.PathError{Op: "delete_dir", Path: dir, Err: err}
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return &fs.PathError{Op: "delete_dir", Path: dir, Err: err}
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := b.osPath(name)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, &fs.PathError{Op: "exists", Path: name, Err: err}
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &fs.PathError{Op: "exists", Path: name, Err: err}
	}
	return !info.IsDir(), nil
}

func listingType(isDir, isRegular bool) backend.ListingType {
	switch {
	case isDir:
		return backend.ListingDir
	case isRegular:
		return backend.ListingFile
	default:
		return backend.ListingOther
	}
}

// underlying strips the *fs.PathError wrapper the os package adds, so the
// caller's PathError doesn't nest another one with an os-specific path.
func underlying(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
