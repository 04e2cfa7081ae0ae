package pathmap

import (
	"fmt"
	"strings"
)

// Encoder maps a raw path segment to a filesystem-safe encoding.
type Encoder interface {
	Encode(name string) (string, error)
}

// URLEncoder percent-encodes every byte outside the RFC 3986 unreserved set
// (ALPHA / DIGIT / "-" / "." / "_" / "~").
type URLEncoder struct{}

func (URLEncoder) Encode(name string) (string, error) {
	return percentEncode(name, func(b byte) bool {
		return !isUnreserved(b)
	}), nil
}

func isUnreserved(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '~':
		return true
	}
	return false
}

// PairtreeEncoder encodes a segment per the pairtree specification draft:
// characters outside the visible-ASCII safe set are hex-escaped with '^', and
// the single-character substitutions '/'→'=', ':'→'+', '.'→',' are applied
// afterward.
type PairtreeEncoder struct{}

func (PairtreeEncoder) Encode(name string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		b := name[i]
		switch {
		case pairtreeEscaped(b):
			fmt.Fprintf(&sb, "^%02x", b)
		case b == '/':
			sb.WriteByte('=')
		case b == ':':
			sb.WriteByte('+')
		case b == '.':
			sb.WriteByte(',')
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String(), nil
}

// pairtreeEscaped returns true for bytes that must be hex-escaped: everything
// outside visible ASCII, plus " * + , < = > ? \ ^ |
func pairtreeEscaped(b byte) bool {
	if b < 0x21 || b > 0x7e {
		return true
	}
	switch b {
	case '"', '*', '+', ',', '<', '=', '>', '?', '\\', '^', '|':
		return true
	}
	return false
}

// DigestEncoder passes hex digest strings through unchanged, validating the
// character set.
type DigestEncoder struct{}

func (DigestEncoder) Encode(name string) (string, error) {
	if name == "" {
		return "", pathErrf(name, "empty digest")
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		isHex := (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
		if !isHex {
			return "", pathErrf(name, "not a hex digest")
		}
	}
	return name, nil
}

// percentEncode encodes each byte of s for which shouldEncode returns true as
// a lowercase '%xx' escape.
func percentEncode(s string, shouldEncode func(byte) bool) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if shouldEncode(b) {
			fmt.Fprintf(&sb, "%%%02x", b)
			continue
		}
		sb.WriteByte(b)
	}
	return sb.String()
}
