package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/archivekit/ocfl/backend"
)

var (
	ErrNamasteNotExist = fmt.Errorf("missing NAMASTE declaration: %w", fs.ErrNotExist)
	ErrNamasteContents = errors.New("invalid NAMASTE declaration contents")
	ErrNamasteMultiple = errors.New("multiple NAMASTE declarations found")
	namasteRE          = regexp.MustCompile(`^0=([a-z_]+)_([0-9]+\.[0-9]+)$`)
)

// Namaste represents a NAMASTE declaration file ("0=ocfl_1.0",
// "0=ocfl_object_1.0").
type Namaste struct {
	Type    string
	Version string
}

// Name returns the filename for n ('0=TYPE_VERSION') or an empty string if n
// is empty.
func (n Namaste) Name() string {
	if n.Type == "" || n.Version == "" {
		return ""
	}
	return "0=" + n.Type + `_` + n.Version
}

// Body returns the expected file contents of the namaste declaration.
func (n Namaste) Body() string {
	if n.Type == "" || n.Version == "" {
		return ""
	}
	return n.Type + `_` + n.Version + "\n"
}

// IsObject returns true if n's type is 'ocfl_object'.
func (n Namaste) IsObject() bool {
	return n.Type == NamasteTypeObject
}

// IsRoot returns true if n's type is 'ocfl'.
func (n Namaste) IsRoot() bool {
	return n.Type == NamasteTypeRoot
}

// ParseNamaste parses name as a namaste declaration filename.
func ParseNamaste(name string) (n Namaste, err error) {
	m := namasteRE.FindStringSubmatch(name)
	if len(m) != 3 {
		return Namaste{}, ErrNamasteNotExist
	}
	n.Type = m[1]
	n.Version = m[2]
	return n, nil
}

// FindNamaste returns the namaste declaration among the listings of a
// directory. An error is returned if the number of declarations is not one.
func FindNamaste(items []backend.Listing) (Namaste, error) {
	var found []Namaste
	for _, e := range items {
		if !e.IsFile() {
			continue
		}
		if dec, err := ParseNamaste(e.Path); err == nil {
			found = append(found, dec)
		}
	}
	switch len(found) {
	case 0:
		return Namaste{}, ErrNamasteNotExist
	case 1:
		return found[0], nil
	default:
		return Namaste{}, ErrNamasteMultiple
	}
}

// ValidateNamaste checks that the declaration file name in dir exists and
// has the required contents.
func ValidateNamaste(ctx context.Context, b backend.Interface, name string) error {
	nam, err := ParseNamaste(path.Base(name))
	if err != nil {
		return err
	}
	decl, err := backend.ReadAll(ctx, b, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("opening %q: %w", name, ErrNamasteNotExist)
		}
		return fmt.Errorf("opening %q: %w", name, err)
	}
	if string(decl) != nam.Body() {
		return fmt.Errorf("contents of %q: %w", name, ErrNamasteContents)
	}
	return nil
}

// WriteDeclaration writes the namaste declaration d to dir.
func WriteDeclaration(ctx context.Context, b backend.Interface, dir string, d Namaste) error {
	cont := strings.NewReader(d.Body())
	if _, err := b.Write(ctx, path.Join(dir, d.Name()), cont, true); err != nil {
		return fmt.Errorf(`writing declaration: %w`, err)
	}
	return nil
}
