package pathmap

import (
	"strings"
)

// Constraint validates a whole logical path.
type Constraint interface {
	ValidPath(p string) error
}

// NameConstraint validates a single path segment.
type NameConstraint interface {
	ValidName(name string) error
}

// Validator applies an ordered chain of path and segment constraints. The
// zero value applies no constraints.
type Validator struct {
	paths []Constraint
	names []NameConstraint
}

// NewValidator returns a Validator with the given constraints. Constraints
// are applied in order; the first failure is returned.
func NewValidator(paths []Constraint, names []NameConstraint) Validator {
	return Validator{paths: paths, names: names}
}

// DefaultValidator returns the validator applied to logical paths at stage
// time: relative paths only, no '.' or '..' segments, no empty segments, and
// non-empty segment names.
func DefaultValidator() Validator {
	return Validator{
		paths: []Constraint{RelativePath{}, NoDotSegments{}, NoEmptySegments{}},
		names: []NameConstraint{NonEmptyName{}},
	}
}

// Validate applies all path constraints to p and all name constraints to each
// of p's segments.
func (v Validator) Validate(p string) error {
	for _, c := range v.paths {
		if err := c.ValidPath(p); err != nil {
			return err
		}
	}
	for _, name := range strings.Split(p, "/") {
		for _, c := range v.names {
			if err := c.ValidName(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// RelativePath rejects absolute paths.
type RelativePath struct{}

func (RelativePath) ValidPath(p string) error {
	if strings.HasPrefix(p, "/") {
		return pathErrf(p, "path must be relative")
	}
	return nil
}

// NoDotSegments rejects paths with '.' or '..' segments.
type NoDotSegments struct{}

func (NoDotSegments) ValidPath(p string) error {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return pathErrf(p, "path contains %q segment", seg)
		}
	}
	return nil
}

// NoEmptySegments rejects paths with empty segments ("a//b", trailing "/").
type NoEmptySegments struct{}

func (NoEmptySegments) ValidPath(p string) error {
	if p == "" {
		return pathErrf(p, "path is empty")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			return pathErrf(p, "path contains empty segment")
		}
	}
	return nil
}

// MaxChars rejects paths longer than N characters (runes).
type MaxChars struct{ N int }

func (c MaxChars) ValidPath(p string) error {
	if n := len([]rune(p)); n > c.N {
		return pathErrf(p, "path has %d characters; limit is %d", n, c.N)
	}
	return nil
}

// MaxBytes rejects paths longer than N bytes.
type MaxBytes struct{ N int }

func (c MaxBytes) ValidPath(p string) error {
	if len(p) > c.N {
		return pathErrf(p, "path has %d bytes; limit is %d", len(p), c.N)
	}
	return nil
}

// NonEmptyName rejects empty segment names.
type NonEmptyName struct{}

func (NonEmptyName) ValidName(name string) error {
	if name == "" {
		return pathErrf(name, "empty filename")
	}
	return nil
}

// CharDenylist rejects segment names containing any of Chars.
type CharDenylist struct{ Chars string }

func (c CharDenylist) ValidName(name string) error {
	if i := strings.IndexAny(name, c.Chars); i >= 0 {
		return pathErrf(name, "filename contains illegal character %q", name[i])
	}
	return nil
}

// ReservedNames rejects the listed segment names. Comparison is
// case-insensitive, as required for Windows device names (CON, NUL, ...).
type ReservedNames struct{ Names []string }

func (c ReservedNames) ValidName(name string) error {
	for _, r := range c.Names {
		if strings.EqualFold(name, r) {
			return pathErrf(name, "filename is reserved")
		}
	}
	return nil
}
