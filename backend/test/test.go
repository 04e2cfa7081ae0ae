// Package test provides a conformance test for backend implementations.
package test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/archivekit/ocfl/backend"
	"github.com/matryer/is"
)

// TestBackend runs the backend contract tests against b. The backend must be
// empty.
func TestBackend(t *testing.T, b backend.Interface) {
	ctx := context.Background()
	t.Run("write and read", func(t *testing.T) {
		is := is.New(t)
		_, err := b.Write(ctx, "a/b/file1.txt", strings.NewReader("content1"), false)
		is.NoErr(err)
		cont, err := backend.ReadAll(ctx, b, "a/b/file1.txt")
		is.NoErr(err)
		is.Equal(string(cont), "content1")
	})
	t.Run("read missing", func(t *testing.T) {
		is := is.New(t)
		_, err := b.Read(ctx, "nothing/here")
		is.True(errors.Is(err, backend.ErrNotExist))
	})
	t.Run("no overwrite", func(t *testing.T) {
		is := is.New(t)
		_, err := b.Write(ctx, "a/b/file1.txt", strings.NewReader("clobber"), false)
		is.True(errors.Is(err, backend.ErrExists))
		cont, err := backend.ReadAll(ctx, b, "a/b/file1.txt")
		is.NoErr(err)
		is.Equal(string(cont), "content1") // unchanged
		_, err = b.Write(ctx, "a/b/file1.txt", strings.NewReader("clobber"), true)
		is.NoErr(err)
		cont, err = backend.ReadAll(ctx, b, "a/b/file1.txt")
		is.NoErr(err)
		is.Equal(string(cont), "clobber")
	})
	t.Run("exists", func(t *testing.T) {
		is := is.New(t)
		ok, err := b.Exists(ctx, "a/b/file1.txt")
		is.NoErr(err)
		is.True(ok)
		ok, err = b.Exists(ctx, "a/b/file2.txt")
		is.NoErr(err)
		is.True(!ok)
	})
	t.Run("list", func(t *testing.T) {
		is := is.New(t)
		_, err := b.Write(ctx, "a/b/c/file2.txt", strings.NewReader("content2"), false)
		is.NoErr(err)
		listings, err := b.List(ctx, "a/b", false)
		is.NoErr(err)
		is.Equal(len(listings), 2)
		byPath := map[string]backend.Listing{}
		for _, l := range listings {
			byPath[l.Path] = l
		}
		is.True(byPath["file1.txt"].IsFile())
		is.True(byPath["c"].IsDir())

		listings, err = b.List(ctx, "a/b", true)
		is.NoErr(err)
		byPath = map[string]backend.Listing{}
		for _, l := range listings {
			byPath[l.Path] = l
		}
		is.True(byPath["file1.txt"].IsFile())
		is.True(byPath["c"].IsDir())
		is.True(byPath["c/file2.txt"].IsFile())
	})
	t.Run("move", func(t *testing.T) {
		is := is.New(t)
		err := b.Move(ctx, "a/b/c/file2.txt", "a/moved.txt")
		is.NoErr(err)
		cont, err := backend.ReadAll(ctx, b, "a/moved.txt")
		is.NoErr(err)
		is.Equal(string(cont), "content2")
		ok, err := b.Exists(ctx, "a/b/c/file2.txt")
		is.NoErr(err)
		is.True(!ok)
		// move onto an existing path fails
		err = b.Move(ctx, "a/moved.txt", "a/b/file1.txt")
		is.True(errors.Is(err, backend.ErrExists))
	})
	t.Run("move directory", func(t *testing.T) {
		is := is.New(t)
		_, err := b.Write(ctx, "staged/x/y.txt", strings.NewReader("staged"), false)
		is.NoErr(err)
		err = b.Move(ctx, "staged", "final")
		is.NoErr(err)
		cont, err := backend.ReadAll(ctx, b, "final/x/y.txt")
		is.NoErr(err)
		is.Equal(string(cont), "staged")
	})
	t.Run("delete", func(t *testing.T) {
		is := is.New(t)
		is.NoErr(b.Delete(ctx, "a/moved.txt"))
		ok, err := b.Exists(ctx, "a/moved.txt")
		is.NoErr(err)
		is.True(!ok)
		is.True(b.Delete(ctx, "a/moved.txt") != nil)
	})
	t.Run("delete dir", func(t *testing.T) {
		is := is.New(t)
		is.NoErr(b.DeleteDir(ctx, "a"))
		ok, err := b.Exists(ctx, "a/b/file1.txt")
		is.NoErr(err)
		is.True(!ok)
		// deleting a missing directory is not an error
		is.NoErr(b.DeleteDir(ctx, "a"))
	})
}
