package ocfl_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/archivekit/ocfl"
	"github.com/archivekit/ocfl/digest"
	"github.com/matryer/is"
)

func sha512Of(s string) string {
	d := digest.SHA512.Digester()
	d.Write([]byte(s))
	return d.String()
}

func newTestUpdater(t *testing.T) *ocfl.Updater {
	t.Helper()
	base, err := ocfl.NewInventory("urn:example:obj1", digest.SHA512)
	if err != nil {
		t.Fatal(err)
	}
	u, err := ocfl.NewUpdater(base)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestUpdaterAddFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := newTestUpdater(t)
	isNew, err := u.AddFile(ctx, strings.NewReader("hi\n"), "hello.txt")
	is.NoErr(err)
	is.True(isNew)
	inv, err := u.Build()
	is.NoErr(err)
	is.Equal(inv.Head, ocfl.V(1))
	dig := sha512Of("hi\n")
	is.Equal(inv.ContentPaths(dig), []string{"v1/content/hello.txt"})
	is.Equal(inv.Version(1).State.DigestPaths(dig), []string{"hello.txt"})
}

func TestUpdaterDedup(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := newTestUpdater(t)
	isNew, err := u.AddFile(ctx, strings.NewReader("hi\n"), "hello.txt")
	is.NoErr(err)
	is.True(isNew)
	// same bytes under a different logical path: content is deduplicated
	isNew, err = u.AddFile(ctx, strings.NewReader("hi\n"), "dup.txt")
	is.NoErr(err)
	is.True(!isNew)
	inv, err := u.Build()
	is.NoErr(err)
	dig := sha512Of("hi\n")
	is.Equal(len(inv.Manifest), 1)
	is.Equal(inv.ContentPaths(dig), []string{"v1/content/hello.txt"})
	state := inv.Version(1).State.DigestPaths(dig)
	is.Equal(len(state), 2)
	// only one content transfer is pending
	_, writes, err := u.NewContent()
	is.NoErr(err)
	is.Equal(len(writes), 1)
}

func TestUpdaterFixity(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := newTestUpdater(t)
	_, err := u.AddFile(ctx, strings.NewReader("hi\n"), "hello.txt", digest.MD5, digest.SIZE)
	is.NoErr(err)
	inv, err := u.Build()
	is.NoErr(err)
	md5Of := func(s string) string {
		d := digest.MD5.Digester()
		d.Write([]byte(s))
		return d.String()
	}
	is.Equal(inv.Fixity["md5"].DigestPaths(md5Of("hi\n")), []string{"v1/content/hello.txt"})
	is.Equal(inv.Fixity["size"].DigestPaths("3"), []string{"v1/content/hello.txt"})
}

func TestUpdaterRemoveAndPrune(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := newTestUpdater(t)
	_, err := u.AddFile(ctx, strings.NewReader("hi\n"), "hello.txt")
	is.NoErr(err)
	_, err = u.AddFile(ctx, strings.NewReader("other\n"), "other.txt", digest.MD5)
	is.NoErr(err)
	is.NoErr(u.RemoveFile("other.txt"))
	is.True(errors.Is(u.RemoveFile("other.txt"), ocfl.ErrNotExist))
	inv, err := u.Build()
	is.NoErr(err)
	// the removed file's manifest, fixity, and pending write are pruned
	is.Equal(len(inv.Manifest), 1)
	is.True(!inv.ManifestContains(sha512Of("other\n")))
	is.Equal(len(inv.Fixity), 0)
	_, writes, err := u.NewContent()
	is.NoErr(err)
	is.Equal(len(writes), 1)
}

func TestUpdaterRename(t *testing.T) {
	is := is.New(t)
	base := testInventory(t)
	u, err := ocfl.NewUpdater(base)
	is.NoErr(err)
	is.Equal(u.Next(), ocfl.V(2))
	is.NoErr(u.RenameFile("hello.txt", "greet.txt"))
	is.True(errors.Is(u.RenameFile("gone.txt", "x.txt"), ocfl.ErrNotExist))
	inv, err := u.Build()
	is.NoErr(err)
	// manifest unchanged; v2 state has only the new name
	is.Equal(inv.ContentPaths(digA), []string{"v1/content/hello.txt"})
	is.Equal(inv.Version(2).State.DigestPaths(digA), []string{"greet.txt"})
	is.Equal(inv.Version(2).State.GetDigest("hello.txt"), "")
	// v1 state is untouched
	is.Equal(inv.Version(1).State.DigestPaths(digA), []string{"hello.txt"})
}

func TestUpdaterReinstate(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	// v2 removes hello.txt
	base := testInventory(t)
	u, err := ocfl.NewUpdater(base)
	is.NoErr(err)
	is.NoErr(u.RemoveFile("hello.txt"))
	_, err = u.AddFile(ctx, strings.NewReader("keep\n"), "keep.txt")
	is.NoErr(err)
	v2inv, err := u.Build()
	is.NoErr(err)
	is.Equal(v2inv.Version(2).State.GetDigest("hello.txt"), "")
	// hello.txt content is still referenced by v1, so the manifest keeps it
	is.True(v2inv.ManifestContains(digA))

	// v3 reinstates hello.txt from v1
	u2, err := ocfl.NewUpdater(v2inv)
	is.NoErr(err)
	is.NoErr(u2.ReinstateFile(1, "hello.txt", "hello.txt"))
	v3inv, err := u2.Build()
	is.NoErr(err)
	is.Equal(v3inv.Version(3).State.DigestPaths(digA), []string{"hello.txt"})
	// no new content was staged
	_, writes, err := u2.NewContent()
	is.NoErr(err)
	is.Equal(len(writes), 0)

	// reinstating from a missing version fails
	u3, err := ocfl.NewUpdater(v3inv)
	is.NoErr(err)
	is.True(errors.Is(u3.ReinstateFile(9, "hello.txt", "x.txt"), ocfl.ErrVersionNotFound))
}

func TestUpdaterCaseCollision(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := newTestUpdater(t)
	_, err := u.AddFile(ctx, strings.NewReader("one"), "a/B.txt")
	is.NoErr(err)
	_, err = u.AddFile(ctx, strings.NewReader("two"), "a/b.txt")
	is.True(errors.Is(err, ocfl.ErrOverwrite))
}

func TestUpdaterOverwrite(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	t.Run("denied by default", func(t *testing.T) {
		is := is.New(t)
		u := newTestUpdater(t)
		_, err := u.AddFile(ctx, strings.NewReader("one"), "file.txt")
		is.NoErr(err)
		_, err = u.AddFile(ctx, strings.NewReader("two"), "file.txt")
		is.True(errors.Is(err, ocfl.ErrOverwrite))
	})
	t.Run("allowed with option", func(t *testing.T) {
		is := is.New(t)
		base, err := ocfl.NewInventory("urn:example:obj1", digest.SHA512)
		is.NoErr(err)
		u, err := ocfl.NewUpdater(base, ocfl.WithOverwrite())
		is.NoErr(err)
		_, err = u.AddFile(ctx, strings.NewReader("one"), "file.txt")
		is.NoErr(err)
		_, err = u.AddFile(ctx, strings.NewReader("two"), "file.txt")
		is.NoErr(err)
		inv, err := u.Build()
		is.NoErr(err)
		// the replaced content is pruned; only the second version remains
		is.Equal(len(inv.Manifest), 1)
		is.Equal(inv.Version(1).State.GetDigest("file.txt"), sha512Of("two"))
	})
}

func TestUpdaterInvalidPaths(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := newTestUpdater(t)
	for _, bad := range []string{"", "/abs", "a//b", "a/../b", "./a"} {
		_, err := u.AddFile(ctx, strings.NewReader("x"), bad)
		is.True(err != nil)
	}
}

func TestUpdaterPadding(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	base, err := ocfl.NewInventory("urn:example:obj1", digest.SHA512)
	is.NoErr(err)
	u, err := ocfl.NewUpdater(base, ocfl.WithPadding(3))
	is.NoErr(err)
	is.Equal(u.Next().String(), "v001")
	_, err = u.AddFile(ctx, strings.NewReader("hi\n"), "hello.txt")
	is.NoErr(err)
	inv, err := u.Build()
	is.NoErr(err)
	is.Equal(inv.ContentPaths(sha512Of("hi\n")), []string{"v001/content/hello.txt"})
}

func TestUpdaterNewContentRequiresBuild(t *testing.T) {
	is := is.New(t)
	u := newTestUpdater(t)
	_, _, err := u.NewContent()
	is.True(errors.Is(err, ocfl.ErrNotStaged))
}
