package ocfl

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/archivekit/ocfl/backend"
	"github.com/archivekit/ocfl/digest"
)

// Object provides read access to a stored OCFL object.
type Object struct {
	b         backend.Interface
	path      string // object root, relative to the storage root
	inventory *Inventory
}

// OpenObjectAt opens the object stored at dir: the object's namaste
// declaration is validated and the root inventory is read and verified
// against its sidecar.
func OpenObjectAt(ctx context.Context, b backend.Interface, dir string) (*Object, error) {
	entries, err := b.List(ctx, dir, false)
	if err != nil {
		return nil, fmt.Errorf("reading object root %q: %w", dir, err)
	}
	nam, err := FindNamaste(entries)
	if err != nil {
		return nil, fmt.Errorf("in %q: %w", dir, err)
	}
	if !nam.IsObject() {
		return nil, fmt.Errorf("in %q: declaration %q: %w", dir, nam.Name(), ErrNamasteContents)
	}
	if err := ValidateNamaste(ctx, b, path.Join(dir, nam.Name())); err != nil {
		return nil, err
	}
	inv, err := ReadInventory(ctx, b, dir)
	if err != nil {
		return nil, err
	}
	obj := &Object{b: b, path: dir, inventory: inv}
	if err := obj.checkVersionDirs(entries); err != nil {
		return nil, err
	}
	return obj, nil
}

// checkVersionDirs confirms that the version directories under the object
// root form a dense sequence with consistent padding matching the inventory.
// The padding in use is inferred from the directory names themselves.
func (obj *Object) checkVersionDirs(entries []backend.Listing) error {
	var vnums VNums
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var v VNum
		if err := ParseVNum(e.Path, &v); err != nil {
			continue // not a version directory
		}
		vnums = append(vnums, v)
	}
	if err := vnums.Valid(); err != nil {
		return fmt.Errorf("%w: version directories in %q: %s", ErrInventoryCorrupt, obj.path, err)
	}
	if vnums.Head() != obj.inventory.Head {
		return fmt.Errorf("%w: inventory head is %s but the last version directory is %s",
			ErrInventoryCorrupt, obj.inventory.Head, vnums.Head())
	}
	return nil
}

// ID returns the object's id.
func (obj *Object) ID() string { return obj.inventory.ID }

// Path returns the object root, relative to the storage root.
func (obj *Object) Path() string { return obj.path }

// Inventory returns the object's root inventory.
func (obj *Object) Inventory() *Inventory { return obj.inventory }

// Head returns the object's most recent version number.
func (obj *Object) Head() VNum { return obj.inventory.Head }

// FileReader reads one content file with inline digest verification.
type FileReader struct {
	*digest.Reader
	closer io.Closer

	// Digest is the file's expected primary digest.
	Digest string
	// ContentPath is the file's storage path relative to the object root.
	ContentPath string
}

// Close closes the underlying stream. Close does not verify fixity; call
// CheckFixity after reading to EOF.
func (f *FileReader) Close() error {
	return f.closer.Close()
}

// OpenFile opens the logical path in version v (0 for head) for reading. All
// bytes read are digested; the caller should call CheckFixity after reading
// to EOF to verify the content against the inventory.
func (obj *Object) OpenFile(ctx context.Context, v int, logical string) (*FileReader, error) {
	contentPath, err := obj.inventory.ContentPath(v, logical)
	if err != nil {
		return nil, err
	}
	ver := obj.inventory.Version(v)
	sum := ver.State.GetDigest(logical)
	alg, err := digest.DefaultRegistry().Get(obj.inventory.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	f, err := obj.b.Read(ctx, path.Join(obj.path, contentPath))
	if err != nil {
		return nil, err
	}
	return &FileReader{
		Reader:      digest.NewReader(f, alg, sum),
		closer:      f,
		Digest:      strings.ToLower(sum),
		ContentPath: contentPath,
	}, nil
}

// ReadFile returns the full contents of the logical path in version v (0 for
// head), verifying the bytes against the inventory digest. A mismatch is
// reported as a *digest.DigestError before any content is returned.
func (obj *Object) ReadFile(ctx context.Context, v int, logical string) ([]byte, error) {
	f, err := obj.OpenFile(ctx, v, logical)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cont, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if err := f.CheckFixity(); err != nil {
		return nil, err
	}
	return cont, nil
}

// Files returns the logical paths in version v's state (0 for head), mapped
// to their primary digests.
func (obj *Object) Files(v int) (map[string]string, error) {
	ver := obj.inventory.Version(v)
	if ver == nil {
		return nil, ErrVersionNotFound
	}
	return ver.State.Paths()
}
