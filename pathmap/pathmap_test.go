package pathmap_test

import (
	"errors"
	"testing"

	"github.com/archivekit/ocfl/pathmap"
	"github.com/matryer/is"
)

// sample path exercising characters that are awkward on at least one target
// filesystem; note the trailing space.
const awkward = "tést/<bad>:Path 1/\\|obj/?8*%id/#{something}/[0]/۞.txt "

func TestMapper(t *testing.T) {
	table := map[pathmap.Policy]string{
		pathmap.Windows:      "tést/%3cbad%3e%3aPath%201/%5c%7cobj/%3f8%2a%25id/#{something}/[0]/۞.txt%20",
		pathmap.Linux:        "tést/<bad>:Path%201/\\|obj/?8*%25id/#{something}/[0]/۞.txt%20",
		pathmap.Conservative: "t%c3%a9st%2f%3cbad%3e%3aPath%201%2f%5c%7cobj%2f%3f8%2a%25id%2f%23%7bsomething%7d%2f%5b0%5d%2f%db%9e%2etxt%20",
	}
	for policy, expect := range table {
		is := is.New(t)
		is.Equal(pathmap.NewMapper(policy).Map(awkward), expect)
	}
}

func TestMapperPlainPaths(t *testing.T) {
	is := is.New(t)
	// paths without special characters are unchanged by every policy except
	// Conservative
	for _, policy := range []pathmap.Policy{pathmap.Windows, pathmap.Linux, pathmap.Cloud, pathmap.All} {
		is.Equal(pathmap.NewMapper(policy).Map("a/b/c.txt"), "a/b/c.txt")
	}
	is.Equal(pathmap.NewMapper(pathmap.Conservative).Map("a/b/c.txt"), "a%2fb%2fc%2etxt")
}

func TestMapperCloud(t *testing.T) {
	is := is.New(t)
	m := pathmap.NewMapper(pathmap.Cloud)
	is.Equal(m.Map("a#b/c[1]"), "a%23b/c%5b1%5d")
	is.Equal(m.Map("ok-path/untouched_1.txt"), "ok-path/untouched_1.txt")
}

func TestValidator(t *testing.T) {
	v := pathmap.DefaultValidator()
	ok := []string{"a", "a/b", "a/b.txt", "dir with space/x", ".hidden/file"}
	bad := []string{"", "/abs", "a//b", "a/", "a/./b", "../a", "a/.."}
	for _, p := range ok {
		if err := v.Validate(p); err != nil {
			t.Errorf("Validate(%q) = %v; expected nil", p, err)
		}
	}
	for _, p := range bad {
		err := v.Validate(p)
		if err == nil {
			t.Errorf("Validate(%q) = nil; expected error", p)
			continue
		}
		var pathErr *pathmap.PathError
		if !errors.As(err, &pathErr) {
			t.Errorf("Validate(%q) returned %T; expected *PathError", p, err)
		}
	}
}

func TestValidatorLimits(t *testing.T) {
	is := is.New(t)
	v := pathmap.NewValidator(
		[]pathmap.Constraint{pathmap.MaxChars{N: 10}, pathmap.MaxBytes{N: 11}},
		[]pathmap.NameConstraint{
			pathmap.CharDenylist{Chars: "\\"},
			pathmap.ReservedNames{Names: []string{"con", "nul"}},
		},
	)
	is.NoErr(v.Validate("short/path"))
	is.True(v.Validate("much-too-long-path") != nil)  // over 10 chars
	is.True(v.Validate("tèst/tèst!") != nil)          // 10 chars but 12 bytes
	is.True(v.Validate("a\\b") != nil)                // denied char
	is.True(v.Validate("a/CON") != nil)               // reserved, case-insensitive
	is.True(v.Validate("a/console") == nil)           // not reserved
}

func TestURLEncoder(t *testing.T) {
	is := is.New(t)
	enc := pathmap.URLEncoder{}
	got, err := enc.Encode("ok-name_1.txt~")
	is.NoErr(err)
	is.Equal(got, "ok-name_1.txt~")
	got, err = enc.Encode("a b%c/d")
	is.NoErr(err)
	is.Equal(got, "a%20b%25c%2fd")
}

func TestPairtreeEncoder(t *testing.T) {
	is := is.New(t)
	enc := pathmap.PairtreeEncoder{}
	// examples from the pairtree draft
	for in, expect := range map[string]string{
		"ark:/13030/xt12t3":      "ark+=13030=xt12t3",
		"http://n2t.info/urn:nbn:se:kb:repos-1": "http+==n2t,info=urn+nbn+se+kb+repos-1",
		"what-the-*@?#!^!?":      "what-the-^2a@^3f#!^5e!^3f",
	} {
		got, err := enc.Encode(in)
		is.NoErr(err)
		is.Equal(got, expect)
	}
}

func TestDigestEncoder(t *testing.T) {
	is := is.New(t)
	enc := pathmap.DigestEncoder{}
	got, err := enc.Encode("0afF19")
	is.NoErr(err)
	is.Equal(got, "0afF19")
	_, err = enc.Encode("xyz")
	is.True(err != nil)
	_, err = enc.Encode("")
	is.True(err != nil)
}
