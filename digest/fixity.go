package digest

import (
	"errors"
	"io"
	"strings"
)

var (
	// ErrFixityChecked is returned when CheckFixity is called more than once
	// on the same reader or writer.
	ErrFixityChecked = errors.New("fixity already checked")
	// ErrFixityEarly is returned when CheckFixity is called on a reader that
	// hasn't reached EOF.
	ErrFixityEarly = errors.New("fixity checked before EOF")
)

// Reader wraps an io.Reader, digesting all bytes read through it. CheckFixity
// compares the computed digest to the expected value. Closing the underlying
// reader does not verify fixity: the check is explicit so callers can abandon
// a partial read without triggering a fixity error.
type Reader struct {
	src      io.Reader
	digester Digester
	alg      string
	expected string
	eof      bool
	checked  bool
}

// NewReader returns a Reader digesting src with alg. The expected digest is
// compared case-insensitively by CheckFixity.
func NewReader(src io.Reader, alg Algorithm, expected string) *Reader {
	return &Reader{
		src:      src,
		digester: alg.Digester(),
		alg:      alg.ID(),
		expected: expected,
	}
}

// Read implements io.Reader. Bytes successfully read from the source are also
// written to the digester.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		if _, derr := r.digester.Write(p[:n]); derr != nil {
			return n, derr
		}
	}
	if errors.Is(err, io.EOF) {
		r.eof = true
	}
	return n, err
}

// CheckFixity compares the digest of all bytes read through r with the
// expected value. It returns a *DigestError on mismatch. CheckFixity may be
// called at most once and only after the source has been fully read.
func (r *Reader) CheckFixity() error {
	if r.checked {
		return ErrFixityChecked
	}
	if !r.eof {
		return ErrFixityEarly
	}
	r.checked = true
	return compare(r.digester, r.alg, r.expected)
}

// Writer wraps an io.Writer, digesting all bytes written through it.
// CheckFixity must be called before the destination's side-effects are
// exposed (e.g. before a temp file is renamed into place).
type Writer struct {
	dst      io.Writer
	digester Digester
	alg      string
	expected string
	checked  bool
}

// NewWriter returns a Writer digesting everything written to dst with alg.
func NewWriter(dst io.Writer, alg Algorithm, expected string) *Writer {
	return &Writer{
		dst:      dst,
		digester: alg.Digester(),
		alg:      alg.ID(),
		expected: expected,
	}
}

// Write implements io.Writer. Bytes successfully written to the destination
// are also written to the digester.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if n > 0 {
		if _, derr := w.digester.Write(p[:n]); derr != nil {
			return n, derr
		}
	}
	return n, err
}

// CheckFixity compares the digest of all bytes written through w with the
// expected value. It returns a *DigestError on mismatch. CheckFixity may be
// called at most once.
func (w *Writer) CheckFixity() error {
	if w.checked {
		return ErrFixityChecked
	}
	w.checked = true
	return compare(w.digester, w.alg, w.expected)
}

// Sum returns the digest computed so far.
func (w *Writer) Sum() string {
	return w.digester.String()
}

func compare(d Digester, alg, expected string) error {
	got := d.String()
	if !strings.EqualFold(got, expected) {
		return &DigestError{Alg: alg, Got: got, Expected: expected}
	}
	return nil
}
