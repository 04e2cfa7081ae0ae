package pathmap

import "strings"

// Policy selects which characters a Mapper escapes, matching the limits of a
// target filesystem.
type Policy int

const (
	// Windows escapes characters that are illegal in Windows filenames,
	// plus '%' and space.
	Windows Policy = iota
	// Linux escapes only characters that are problematic on POSIX
	// filesystems, plus '%' and space.
	Linux
	// Cloud escapes characters that commonly misbehave in cloud object
	// keys (S3, Azure).
	Cloud
	// All is the union of Windows, Linux, and Cloud.
	All
	// Conservative percent-encodes every byte that is not an ASCII letter
	// or digit, including '.' and '/'. The result is a single flat
	// segment.
	Conservative
)

// Mapper maps logical paths to content-path-safe encodings according to a
// Policy. Percent escapes always use lowercase hex.
type Mapper struct {
	policy Policy
}

// NewMapper returns a Mapper for the given policy.
func NewMapper(p Policy) Mapper {
	return Mapper{policy: p}
}

// Map encodes the logical path p. For all policies except Conservative, '/'
// separators are preserved and each segment is encoded independently;
// Conservative encodes the entire path, separators included, into one
// segment.
func (m Mapper) Map(p string) string {
	if m.policy == Conservative {
		return percentEncode(p, func(b byte) bool {
			return !isASCIIAlphanumeric(b)
		})
	}
	shouldEncode := m.encodeSet()
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = percentEncode(seg, shouldEncode)
	}
	return strings.Join(segments, "/")
}

func (m Mapper) encodeSet() func(byte) bool {
	switch m.policy {
	case Windows:
		return windowsEncoded
	case Linux:
		return linuxEncoded
	case Cloud:
		return cloudEncoded
	case All:
		return func(b byte) bool {
			return windowsEncoded(b) || linuxEncoded(b) || cloudEncoded(b)
		}
	default:
		return linuxEncoded
	}
}

func isASCIIAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// windowsEncoded covers the characters Windows forbids in filenames, control
// characters, space, and '%'.
func windowsEncoded(b byte) bool {
	if b < 0x20 {
		return true
	}
	switch b {
	case '<', '>', ':', '"', '\\', '|', '?', '*', ' ', '%':
		return true
	}
	return false
}

// linuxEncoded covers control characters, space, and '%'.
func linuxEncoded(b byte) bool {
	if b < 0x20 {
		return true
	}
	switch b {
	case ' ', '%':
		return true
	}
	return false
}

// cloudEncoded covers characters the S3 and Azure key guidelines recommend
// avoiding, control characters, space, and '%'.
func cloudEncoded(b byte) bool {
	if b < 0x20 || b == 0x7f {
		return true
	}
	switch b {
	case ' ', '%', '\\', '#', '[', ']', '{', '}', '^', '`', '"', '<', '>', '~', '|':
		return true
	}
	return false
}
