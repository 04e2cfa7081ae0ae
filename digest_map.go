package ocfl

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/exp/maps"
)

var digestRegexp = regexp.MustCompile("^[0-9a-fA-F]+$")

// DigestMap maps digest values to sets of paths. It is the data structure
// behind the manifest, version state, and fixity blocks of an inventory.
// Path order within a digest entry is preserved.
type DigestMap map[string][]string

// Add adds a digest → path entry to the map. Adding an existing
// (digest, path) pair is a no-op; adding a path that exists under a
// different digest is an error.
func (dm *DigestMap) Add(digest string, p string) error {
	if err := validMapPath(p); err != nil {
		return err
	}
	digest = strings.ToLower(digest)
	if existing := dm.GetDigest(p); existing != "" {
		if existing == digest {
			return nil
		}
		return fmt.Errorf("path %q already exists with a different digest", p)
	}
	if *dm == nil {
		*dm = DigestMap{}
	}
	(*dm)[digest] = append((*dm)[digest], p)
	return nil
}

// HasDigest returns whether the map includes an entry for digest. The
// comparison is on lowercase hex.
func (dm DigestMap) HasDigest(digest string) bool {
	_, ok := dm[strings.ToLower(digest)]
	return ok
}

// DigestPaths returns the paths associated with digest, in insertion order.
func (dm DigestMap) DigestPaths(digest string) []string {
	return dm[strings.ToLower(digest)]
}

// GetDigest returns the digest for path p, or "" if p isn't in the map.
func (dm DigestMap) GetDigest(p string) string {
	for d, paths := range dm {
		for _, dmPath := range paths {
			if p == dmPath {
				return d
			}
		}
	}
	return ""
}

// RemovePath removes p from the map. If p was the digest's only path, the
// digest entry is removed entirely. It returns whether p was present.
func (dm DigestMap) RemovePath(p string) bool {
	for d, paths := range dm {
		for i, dmPath := range paths {
			if p != dmPath {
				continue
			}
			if len(paths) == 1 {
				delete(dm, d)
				return true
			}
			dm[d] = append(paths[:i:i], paths[i+1:]...)
			return true
		}
	}
	return false
}

// Digests returns all digest values in the map.
func (dm DigestMap) Digests() []string {
	return maps.Keys(dm)
}

// NumPaths returns the total number of paths in the map.
func (dm DigestMap) NumPaths() int {
	var n int
	for _, paths := range dm {
		n += len(paths)
	}
	return n
}

// Paths returns a path → digest mapping for all entries. It returns an error
// if two identical paths are present.
func (dm DigestMap) Paths() (map[string]string, error) {
	inv := make(map[string]string, len(dm))
	for d, paths := range dm {
		for _, p := range paths {
			if _, exists := inv[p]; exists {
				return nil, fmt.Errorf("duplicate path in digest map: %s", p)
			}
			inv[p] = d
		}
	}
	return inv, nil
}

// EachPath calls fn for every (path, digest) pair in the map. If fn returns
// a non-nil error, iteration stops and the error is returned.
func (dm DigestMap) EachPath(fn func(p string, digest string) error) error {
	for d, paths := range dm {
		for _, p := range paths {
			if err := fn(p, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Eq returns whether dm and other have the same digests and the same path
// sets (order-insensitive) for every digest.
func (dm DigestMap) Eq(other DigestMap) bool {
	if len(dm) != len(other) {
		return false
	}
	for d, paths := range dm {
		otherPaths := other[d]
		if len(paths) != len(otherPaths) {
			return false
		}
		for _, p := range paths {
			found := false
			for _, op := range otherPaths {
				if p == op {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// Copy returns a deep copy of dm.
func (dm DigestMap) Copy() DigestMap {
	newDM := make(DigestMap, len(dm))
	for d, paths := range dm {
		newDM[d] = append([]string{}, paths...)
	}
	return newDM
}

// Normalized returns a copy of dm with all digests in lowercase hex and all
// paths validated. An error is returned if the map includes an invalid
// digest or path, digests differing only in case, duplicate paths, or a path
// that is also used as a directory.
func (dm DigestMap) Normalized() (DigestMap, error) {
	if dm == nil {
		return nil, errors.New("digest map cannot be nil")
	}
	newDM := make(DigestMap, len(dm))
	allDirs := make(map[string]bool)
	allPaths := make(map[string]bool)
	for d, paths := range dm {
		if !digestRegexp.MatchString(d) {
			return nil, fmt.Errorf("invalid digest: %s", d)
		}
		lowerD := strings.ToLower(d)
		if _, exists := newDM[lowerD]; exists {
			return nil, fmt.Errorf("duplicate digests: %s and %s", d, lowerD)
		}
		newDM[lowerD] = make([]string, len(paths))
		for i, p := range paths {
			if err := validMapPath(p); err != nil {
				return nil, err
			}
			if allPaths[p] {
				return nil, fmt.Errorf("duplicate path in digest map: %s", p)
			}
			allPaths[p] = true
			newDM[lowerD][i] = p
			for _, dir := range parentDirs(p) {
				allDirs[dir] = true
			}
		}
	}
	// no paths should be dirs
	for p := range allPaths {
		if allDirs[p] {
			return nil, fmt.Errorf("path %s also used as a directory", p)
		}
	}
	return newDM, nil
}

// Valid returns an error if dm fails normalization.
func (dm DigestMap) Valid() error {
	_, err := dm.Normalized()
	return err
}

// validMapPath checks that p is a legal relative path for a digest map.
func validMapPath(p string) error {
	if p == "" || p == "." || p != path.Clean(p) {
		return fmt.Errorf("path includes elements ('.','..','//'): %s", p)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return fmt.Errorf("path is outside the object root: %s", p)
	}
	if path.IsAbs(p) {
		return fmt.Errorf("path must be relative: %s", p)
	}
	return nil
}

// parentDirs returns a slice of paths for each parent of p.
// "a/b/c/d" -> ["a","a/b","a/b/c"]
func parentDirs(p string) []string {
	dir := path.Dir(p)
	if dir == "." {
		return nil
	}
	names := strings.Split(dir, "/")
	var ret []string
	for i, n := range names {
		if n == "" {
			continue
		}
		ret = append(ret, strings.Join(names[0:i+1], "/"))
	}
	return ret
}
