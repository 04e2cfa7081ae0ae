package ocfl_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/archivekit/ocfl"
	"github.com/archivekit/ocfl/backend"
	"github.com/archivekit/ocfl/backend/mem"
	"github.com/archivekit/ocfl/digest"
	"github.com/go-test/deep"
	"github.com/matryer/is"
)

const (
	digA = "a84c2d66b22a8bd2728f4aaed73ed284b1eb9e2525aff316b6a22a0b2623eed13c9b0639b4e1838cf4b53e6f1e9597eb35bbe1a04291fabd3ad1ea39a4e6fccf"
	digB = "6bd900d2e68c9a25333fe5ff867a087b44ffd1e4c4b371818f7e36a8a333f4b1aae236bd4966e58e57446d0b25fabbb1bbb5ca73ed52e21f6d738f39eb4a293a"
)

func testInventory(t *testing.T) *ocfl.Inventory {
	t.Helper()
	inv, err := ocfl.NewInventory("urn:example:obj1", digest.SHA512)
	if err != nil {
		t.Fatal(err)
	}
	if err := inv.AddFileToManifest(digA, "v1/content/hello.txt"); err != nil {
		t.Fatal(err)
	}
	if err := inv.AddFixity("v1/content/hello.txt", "md5", "0123456789abcdef0123456789abcdef"); err != nil {
		t.Fatal(err)
	}
	v1 := &ocfl.Version{
		Created: time.Date(2023, 11, 5, 12, 30, 0, 0, time.UTC),
		Message: "initial version",
		User:    &ocfl.User{Name: "alice", Address: "mailto:alice@example.org"},
		State:   ocfl.DigestMap{digA: {"hello.txt"}},
	}
	if err := inv.AddHeadVersion(ocfl.V(1), v1); err != nil {
		t.Fatal(err)
	}
	return inv
}

func TestInventoryAccessors(t *testing.T) {
	is := is.New(t)
	inv := testInventory(t)
	is.Equal(inv.Head, ocfl.V(1))
	is.Equal(inv.ContentDir(), "content")
	is.True(inv.ManifestContains(digA))
	is.True(inv.ManifestContains(strings.ToUpper(digA)))
	is.Equal(inv.ContentPaths(digA), []string{"v1/content/hello.txt"})
	cp, err := inv.ContentPath(0, "hello.txt")
	is.NoErr(err)
	is.Equal(cp, "v1/content/hello.txt")
	_, err = inv.ContentPath(0, "missing.txt")
	is.True(errors.Is(err, backend.ErrNotExist))
	_, err = inv.ContentPath(9, "hello.txt")
	is.True(errors.Is(err, ocfl.ErrVersionNotFound))
	digests := inv.DigestsForLogicalPath("hello.txt")
	is.Equal(digests[ocfl.V(1)], digA)
}

func TestAddHeadVersion(t *testing.T) {
	is := is.New(t)
	inv := testInventory(t)
	ver := &ocfl.Version{
		Created: time.Now().UTC(),
		State:   ocfl.DigestMap{digA: {"renamed.txt"}},
	}
	// version numbers must be sequential
	is.True(errors.Is(inv.AddHeadVersion(ocfl.V(3), ver), ocfl.ErrVNumInvalid))
	is.NoErr(inv.AddHeadVersion(ocfl.V(2), ver))
	is.Equal(inv.Head, ocfl.V(2))
	// the first version must be v1
	empty, err := ocfl.NewInventory("urn:example:obj2", digest.SHA512)
	is.NoErr(err)
	is.True(errors.Is(empty.AddHeadVersion(ocfl.V(2), ver), ocfl.ErrVNumInvalid))
}

func TestAddFixityRequiresManifestPath(t *testing.T) {
	is := is.New(t)
	inv := testInventory(t)
	err := inv.AddFixity("v1/content/unknown.txt", "md5", "0123456789abcdef0123456789abcdef")
	is.True(err != nil)
}

func TestInventoryValidate(t *testing.T) {
	is := is.New(t)
	is.NoErr(testInventory(t).Validate())

	t.Run("state digest not in manifest", func(t *testing.T) {
		is := is.New(t)
		inv := testInventory(t)
		inv.Versions[ocfl.V(1)].State = ocfl.DigestMap{digB: {"hello.txt"}}
		is.True(errors.Is(inv.Validate(), ocfl.ErrInventoryCorrupt))
	})
	t.Run("unreferenced manifest digest", func(t *testing.T) {
		is := is.New(t)
		inv := testInventory(t)
		inv.Manifest[digB] = []string{"v1/content/orphan.txt"}
		is.True(errors.Is(inv.Validate(), ocfl.ErrInventoryCorrupt))
	})
	t.Run("fixity path not in manifest", func(t *testing.T) {
		is := is.New(t)
		inv := testInventory(t)
		inv.Fixity["md5"] = ocfl.DigestMap{"0123456789abcdef0123456789abcdef": {"v1/content/other.txt"}}
		is.True(errors.Is(inv.Validate(), ocfl.ErrInventoryCorrupt))
	})
	t.Run("sparse versions", func(t *testing.T) {
		is := is.New(t)
		inv := testInventory(t)
		inv.Versions[ocfl.V(3)] = inv.Versions[ocfl.V(1)]
		is.True(errors.Is(inv.Validate(), ocfl.ErrInventoryCorrupt))
	})
	t.Run("bad digest algorithm", func(t *testing.T) {
		is := is.New(t)
		inv := testInventory(t)
		inv.DigestAlgorithm = "md5"
		is.True(errors.Is(inv.Validate(), ocfl.ErrInventoryCorrupt))
	})
	t.Run("bad type", func(t *testing.T) {
		is := is.New(t)
		inv := testInventory(t)
		inv.Type = "https://ocfl.io/2.0/spec/#inventory"
		is.True(errors.Is(inv.Validate(), ocfl.ErrInventoryCorrupt))
	})
}

func TestInventoryRoundTrip(t *testing.T) {
	is := is.New(t)
	inv := testInventory(t)
	byts, err := inv.Marshal()
	is.NoErr(err)
	parsed, err := ocfl.UnmarshalInventory(byts)
	is.NoErr(err)
	// semantic equality
	if diff := deep.Equal(inv, parsed); diff != nil {
		t.Fatalf("inventories differ after round-trip: %v", diff)
	}
	// byte-identical re-serialization
	byts2, err := parsed.Marshal()
	is.NoErr(err)
	is.True(bytes.Equal(byts, byts2))
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	is := is.New(t)
	byts, err := testInventory(t).Marshal()
	is.NoErr(err)
	bad := bytes.Replace(byts, []byte(`"id":`), []byte(`"unknownKey": 1, "id":`), 1)
	_, err = ocfl.UnmarshalInventory(bad)
	is.True(errors.Is(err, ocfl.ErrInventoryCorrupt))
}

func TestInventoryStorageRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	inv := testInventory(t)
	is.NoErr(ocfl.WriteInventory(ctx, b, inv, "obj", "obj/v1"))

	// sidecar uses the two-space POSIX sum format
	side, err := backend.ReadAll(ctx, b, "obj/inventory.json.sha512")
	is.NoErr(err)
	is.True(strings.HasSuffix(string(side), "  inventory.json\n"))

	read, err := ocfl.ReadInventory(ctx, b, "obj")
	is.NoErr(err)
	is.Equal(read.ID, inv.ID)
	is.True(read.Digest() != "")

	// both copies are identical
	rootCopy, err := backend.ReadAll(ctx, b, "obj/inventory.json")
	is.NoErr(err)
	verCopy, err := backend.ReadAll(ctx, b, "obj/v1/inventory.json")
	is.NoErr(err)
	is.True(bytes.Equal(rootCopy, verCopy))
}

func TestSidecarTamperDetection(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	inv := testInventory(t)
	is.NoErr(ocfl.WriteInventory(ctx, b, inv, "obj"))

	// flip one byte of inventory.json
	cont, err := backend.ReadAll(ctx, b, "obj/inventory.json")
	is.NoErr(err)
	i := bytes.Index(cont, []byte("initial version"))
	is.True(i > 0)
	cont[i] ^= 1
	_, err = b.Write(ctx, "obj/inventory.json", bytes.NewReader(cont), true)
	is.NoErr(err)

	_, err = ocfl.ReadInventory(ctx, b, "obj")
	var digestErr *digest.DigestError
	is.True(errors.As(err, &digestErr))
	is.Equal(digestErr.Alg, "sha512")
}

func TestReadInventorySidecar(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := mem.NewBackend()
	_, err := b.Write(ctx, "s1", strings.NewReader(digA+"  inventory.json\n"), false)
	is.NoErr(err)
	sum, err := ocfl.ReadInventorySidecar(ctx, b, "s1")
	is.NoErr(err)
	is.Equal(sum, digA)
	_, err = b.Write(ctx, "s2", strings.NewReader("not a sidecar"), false)
	is.NoErr(err)
	_, err = ocfl.ReadInventorySidecar(ctx, b, "s2")
	is.True(errors.Is(err, ocfl.ErrInventoryCorrupt))
}
