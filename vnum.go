package ocfl

import (
	"encoding"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrVNumInvalid = errors.New(`invalid version`)
	ErrVNumPadding = errors.New(`inconsistent version padding in version sequence`)
	ErrVNumMissing = errors.New(`missing version in version sequence`)
	ErrVerEmpty    = errors.New("no versions found")

	// Head is the zero value VNum; IsZero reports whether a VNum equals it.
	Head = VNum{}
)

// VNum is an OCFL object version number ("v1", "v02"). It pairs a sequence
// number with a zero-padding width: the total number of digits the rendered
// number occupies, or zero for unpadded numbers. The width is fixed at
// object creation; a padded number always carries at least one leading zero,
// which caps the sequence numbers the scheme can represent.
type VNum struct {
	n     int // sequence number, 1,2,3...
	width int // rendered digit count; 0 means unpadded
}

// V returns a new VNum. The first argument is a sequence number; an optional
// second argument sets the padding width. Additional arguments are ignored.
// Without arguments, V() returns a zero value VNum.
func V(ns ...int) VNum {
	v := VNum{}
	if len(ns) > 0 {
		v.n = ns[0]
	}
	if len(ns) > 1 {
		v.width = ns[1]
	}
	return v
}

// ParseVNum parses s as a version number and sets the value referenced by
// vn. A valid name is 'v' followed only by digits; a leading zero implies
// padding, and a name with no nonzero digit ("v0", "v00") is rejected.
func ParseVNum(s string, vn *VNum) error {
	digits, hasPrefix := strings.CutPrefix(s, "v")
	if !hasPrefix || digits == "" {
		return fmt.Errorf("%s: %w", s, ErrVNumInvalid)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return fmt.Errorf("%s: %w", s, ErrVNumInvalid)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return fmt.Errorf("%s: %w", s, ErrVNumInvalid)
	}
	vn.n = n
	vn.width = 0
	if digits[0] == '0' {
		vn.width = len(digits)
	}
	return nil
}

// MustParseVNum parses s as a VNum and returns it, panicking if s cannot be
// parsed.
func MustParseVNum(s string) VNum {
	var v VNum
	if err := ParseVNum(s, &v); err != nil {
		panic(err)
	}
	return v
}

// Num returns v's sequence number.
func (v VNum) Num() int { return v.n }

// Padding returns v's padding width.
func (v VNum) Padding() int { return v.width }

// IsZero returns whether v is the zero value.
func (v VNum) IsZero() bool { return v == Head }

// First returns true if v is a version 1.
func (v VNum) First() bool { return v.n == 1 }

// String renders v with its padding width ("v3", "v003").
func (v VNum) String() string {
	digits := strconv.Itoa(v.n)
	if pad := v.width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return "v" + digits
}

// Valid returns an error if v has a non-positive sequence number or a
// sequence number too wide for its padding. A padded number must keep at
// least one leading zero.
func (v VNum) Valid() error {
	if v.n < 1 {
		return fmt.Errorf("%w: num=%d, padding=%d", ErrVNumInvalid, v.n, v.width)
	}
	if v.width > 0 && len(strconv.Itoa(v.n)) >= v.width {
		return fmt.Errorf("%w: num=%d, padding=%d", ErrVNumInvalid, v.n, v.width)
	}
	return nil
}

// Next returns the version after v with the same padding. An error is
// returned if the next number would no longer fit the padding.
func (v VNum) Next() (VNum, error) {
	next := VNum{n: v.n + 1, width: v.width}
	if err := next.Valid(); err != nil {
		return VNum{}, fmt.Errorf("next version: padding overflow: %w", ErrVNumInvalid)
	}
	return next, nil
}

// Interfaces VNum implements
var _ encoding.TextMarshaler = (*VNum)(nil)
var _ encoding.TextUnmarshaler = (*VNum)(nil)

func (v VNum) MarshalText() ([]byte, error) {
	if err := v.Valid(); err != nil {
		return nil, err
	}
	return []byte(v.String()), nil
}

func (v *VNum) UnmarshalText(text []byte) error {
	return ParseVNum(string(text), v)
}

// VNums is a slice of VNum elements.
type VNums []VNum

// Sort orders vs by sequence number, in place.
func (vs VNums) Sort() {
	slices.SortFunc(vs, func(a, b VNum) int { return a.n - b.n })
}

// Valid returns a non-nil error if vs is empty, is not the continuous
// sequence v1..vN, mixes padding widths, or ends in a number that overflows
// the padding. Valid sorts vs as a side effect.
func (vs VNums) Valid() error {
	if len(vs) == 0 {
		return ErrVerEmpty
	}
	vs.Sort()
	width := vs[0].width
	for i, v := range vs {
		switch {
		case v.n != i+1:
			return fmt.Errorf("%w: %s", ErrVNumMissing, V(i+1, width))
		case v.width != width:
			return ErrVNumPadding
		}
	}
	return vs.Head().Valid()
}

// Head returns the last VNum in vs.
func (vs VNums) Head() VNum {
	if len(vs) == 0 {
		return VNum{}
	}
	return vs[len(vs)-1]
}
