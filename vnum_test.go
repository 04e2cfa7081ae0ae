package ocfl_test

import (
	"errors"
	"testing"

	"github.com/archivekit/ocfl"
	"github.com/matryer/is"
)

func TestParseVNum(t *testing.T) {
	is := is.New(t)
	table := map[string]ocfl.VNum{
		"v1":    ocfl.V(1),
		"v100":  ocfl.V(100),
		"v10":   ocfl.V(10),
		"v01":   ocfl.V(1, 2),
		"v0001": ocfl.V(1, 4),
		"v099":  ocfl.V(99, 3),
	}
	for in, expect := range table {
		var v ocfl.VNum
		is.NoErr(ocfl.ParseVNum(in, &v))
		is.Equal(v, expect)
		is.Equal(v.String(), in)
	}
	invalid := []string{
		"", "v", "v0", "v00", "v-1", "1", "010", "asdf", "v1.0", "vv1", "v 1",
	}
	for _, in := range invalid {
		var v ocfl.VNum
		err := ocfl.ParseVNum(in, &v)
		if !errors.Is(err, ocfl.ErrVNumInvalid) {
			t.Errorf("ParseVNum(%q) = %v; expected ErrVNumInvalid", in, err)
		}
	}
}

func TestVNumNext(t *testing.T) {
	is := is.New(t)
	next, err := ocfl.V(1).Next()
	is.NoErr(err)
	is.Equal(next, ocfl.V(2))
	next, err = ocfl.V(8, 2).Next()
	is.NoErr(err)
	is.Equal(next.String(), "v09")
	// padding overflow
	_, err = ocfl.V(9, 2).Next()
	is.True(errors.Is(err, ocfl.ErrVNumInvalid))
}

func TestVNumsValid(t *testing.T) {
	is := is.New(t)
	is.NoErr(ocfl.VNums{ocfl.V(1), ocfl.V(2), ocfl.V(3)}.Valid())
	// order doesn't matter
	is.NoErr(ocfl.VNums{ocfl.V(3), ocfl.V(1), ocfl.V(2)}.Valid())
	// missing version
	is.True(errors.Is(ocfl.VNums{ocfl.V(1), ocfl.V(3)}.Valid(), ocfl.ErrVNumMissing))
	// inconsistent padding
	is.True(errors.Is(ocfl.VNums{ocfl.V(1, 2), ocfl.V(2)}.Valid(), ocfl.ErrVNumPadding))
	// empty
	is.True(errors.Is(ocfl.VNums{}.Valid(), ocfl.ErrVerEmpty))
}

func TestVNumJSON(t *testing.T) {
	is := is.New(t)
	v := ocfl.MustParseVNum("v02")
	text, err := v.MarshalText()
	is.NoErr(err)
	is.Equal(string(text), "v02")
	var parsed ocfl.VNum
	is.NoErr(parsed.UnmarshalText(text))
	is.Equal(parsed, v)
}
