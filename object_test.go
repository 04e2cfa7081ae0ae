package ocfl_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/archivekit/ocfl"
	"github.com/archivekit/ocfl/backend/mem"
	"github.com/matryer/is"
)

func TestOpenObjectAt(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	r := newTestRoot(t, b)
	commitFile(t, r, "o1", "hello.txt", "hi\n")

	obj, err := ocfl.OpenObjectAt(ctx, b, "o1")
	is.NoErr(err)
	is.Equal(obj.ID(), "o1")
	is.Equal(obj.Path(), "o1")
	is.Equal(obj.Head(), ocfl.V(1))

	files, err := obj.Files(0)
	is.NoErr(err)
	is.Equal(files["hello.txt"], sha512Of("hi\n"))

	_, err = obj.Files(9)
	is.True(errors.Is(err, ocfl.ErrVersionNotFound))
}

func TestOpenObjectAtMissing(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	_, err := ocfl.OpenObjectAt(ctx, b, "nothing")
	is.True(err != nil)
}

func TestOpenObjectAtNoDeclaration(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	_, err := b.Write(ctx, "o1/some-file.txt", strings.NewReader("x"), false)
	is.NoErr(err)
	_, err = ocfl.OpenObjectAt(ctx, b, "o1")
	is.True(errors.Is(err, ocfl.ErrNamasteNotExist))
}

func TestOpenObjectVersionDirConsistency(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	r := newTestRoot(t, b)
	commitFile(t, r, "o1", "hello.txt", "hi\n")

	// a version directory with no v2 between it and the head
	_, err := b.Write(ctx, "o1/v3/content/x.txt", strings.NewReader("x"), false)
	is.NoErr(err)
	_, err = ocfl.OpenObjectAt(ctx, b, "o1")
	is.True(errors.Is(err, ocfl.ErrInventoryCorrupt))
}

func TestObjectIDMismatch(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	r := newTestRoot(t, b)
	commitFile(t, r, "o1", "hello.txt", "hi\n")

	// move the whole object to where a different id would resolve
	is.NoErr(b.Move(ctx, "o1", "o2"))
	_, err := r.OpenObject(ctx, "o2")
	is.True(errors.Is(err, ocfl.ErrInventoryCorrupt))
}
