package digest_test

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
	"testing"

	"github.com/archivekit/ocfl/digest"
	"github.com/matryer/is"
	"golang.org/x/crypto/blake2b"
)

// reference implementations for built-in algorithms
func refSum(algID string, data []byte) (string, error) {
	var h hash.Hash
	switch algID {
	case "sha512":
		h = sha512.New()
	case "sha256":
		h = sha256.New()
	case "sha1":
		h = sha1.New()
	case "md5":
		h = md5.New()
	case "sha512/256":
		h = sha512.New512_256()
	case "blake2b-512":
		h, _ = blake2b.New512(nil)
	case "blake2b-384":
		h, _ = blake2b.New384(nil)
	case "blake2b-256":
		h, _ = blake2b.New256(nil)
	case "blake2b-160":
		h, _ = blake2b.New(20, nil)
	case "size":
		return fmt.Sprintf("%d", len(data)), nil
	default:
		return "", fmt.Errorf("no reference implementation for %s", algID)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

var allAlgs = []digest.Algorithm{
	digest.SHA512,
	digest.SHA256,
	digest.SHA1,
	digest.MD5,
	digest.BLAKE2B,
	digest.BLAKE2B_160,
	digest.BLAKE2B_256,
	digest.BLAKE2B_384,
	digest.SHA512_256,
	digest.SIZE,
}

func TestDigesterRoundTrip(t *testing.T) {
	data := [][]byte{
		{},
		[]byte("hi\n"),
		bytes.Repeat([]byte("content"), 1031),
	}
	for _, alg := range allAlgs {
		for _, b := range data {
			t.Run(alg.ID(), func(t *testing.T) {
				is := is.New(t)
				// streamed in small chunks
				streamed := alg.Digester()
				_, err := io.Copy(streamed, iotest(b))
				is.NoErr(err)
				// all at once
				direct := alg.Digester()
				_, err = direct.Write(b)
				is.NoErr(err)
				is.Equal(streamed.String(), direct.String())
				expect, err := refSum(alg.ID(), b)
				is.NoErr(err)
				is.Equal(streamed.String(), expect)
				is.Equal(streamed.String(), strings.ToLower(streamed.String()))
			})
		}
	}
}

// iotest returns a reader that yields b one byte at a time
func iotest(b []byte) io.Reader {
	return &oneByteReader{b: b}
}

type oneByteReader struct{ b []byte }

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	p[0] = r.b[0]
	r.b = r.b[1:]
	return 1, nil
}

func TestMultiDigester(t *testing.T) {
	is := is.New(t)
	data := []byte("multi digester content")
	md := digest.NewMultiDigester(digest.SHA512, digest.MD5, digest.SIZE)
	_, err := md.Write(data)
	is.NoErr(err)
	sums := md.Sums()
	is.Equal(len(sums), 3)
	for alg, sum := range sums {
		expect, err := refSum(alg, data)
		is.NoErr(err)
		is.Equal(sum, expect)
	}
	is.Equal(md.Sum("sha256"), "") // not configured
}

func TestSetAdd(t *testing.T) {
	is := is.New(t)
	s := digest.Set{"md5": "abc"}
	is.NoErr(s.Add(digest.Set{"md5": "ABC", "sha1": "def"}))
	is.Equal(s["sha1"], "def")
	err := s.Add(digest.Set{"md5": "different"})
	var digestErr *digest.DigestError
	is.True(errors.As(err, &digestErr))
	is.Equal(digestErr.Alg, "md5")
}

func TestRegistry(t *testing.T) {
	is := is.New(t)
	reg := digest.NewRegistry()
	alg, err := reg.Get("sha512")
	is.NoErr(err)
	is.Equal(alg.ID(), "sha512")
	// lookup is case-insensitive
	alg, err = reg.Get("SHA512")
	is.NoErr(err)
	is.Equal(alg.ID(), "sha512")
	_, err = reg.Get("sha3-512")
	is.True(errors.Is(err, digest.ErrUnknownAlg))
	// registration overwrites
	reg.Register(digest.SHA512)
	alg, err = reg.Get("sha512")
	is.NoErr(err)
	is.Equal(alg.ID(), "sha512")
}

func TestValidPrimary(t *testing.T) {
	is := is.New(t)
	is.True(digest.ValidPrimary(digest.SHA512))
	is.True(digest.ValidPrimary(digest.SHA256))
	is.True(!digest.ValidPrimary(digest.MD5))
	is.True(!digest.ValidPrimary(digest.SIZE))
	is.True(!digest.ValidPrimary(nil))
}

func TestValidate(t *testing.T) {
	is := is.New(t)
	data := []byte("validate me")
	md := digest.NewMultiDigester(digest.SHA256, digest.SIZE)
	_, err := md.Write(data)
	is.NoErr(err)
	set := md.Sums()
	is.NoErr(digest.Validate(bytes.NewReader(data), set, digest.DefaultRegistry()))
	set["sha256"] = strings.Repeat("0", 64)
	err = digest.Validate(bytes.NewReader(data), set, digest.DefaultRegistry())
	var digestErr *digest.DigestError
	is.True(errors.As(err, &digestErr))
	is.Equal(digestErr.Alg, "sha256")
}
