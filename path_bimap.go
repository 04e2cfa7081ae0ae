package ocfl

import "strings"

// PathBiMap is a two-way mapping between file ids (digests) and paths. Id
// lookups are case-insensitive; path lookups are case-sensitive. A single id
// may map to many paths; each path maps to exactly one id. The updater uses
// it to detect logical paths that collide on case-insensitive filesystems.
type PathBiMap struct {
	idToPaths map[string][]string // key: lowercase id
	pathToID  map[string]string   // value: id as inserted
}

// NewPathBiMap returns an empty PathBiMap.
func NewPathBiMap() *PathBiMap {
	return &PathBiMap{
		idToPaths: map[string][]string{},
		pathToID:  map[string]string{},
	}
}

// Put associates path with id, replacing any existing association for path.
func (bm *PathBiMap) Put(id string, path string) {
	bm.RemovePath(path)
	key := strings.ToLower(id)
	bm.idToPaths[key] = append(bm.idToPaths[key], path)
	bm.pathToID[path] = id
}

// GetPaths returns the paths for id. The lookup is case-insensitive.
func (bm *PathBiMap) GetPaths(id string) []string {
	return bm.idToPaths[strings.ToLower(id)]
}

// GetFileID returns the id for path and whether path is present. The lookup
// is case-sensitive.
func (bm *PathBiMap) GetFileID(path string) (string, bool) {
	id, ok := bm.pathToID[path]
	return id, ok
}

// HasPath returns whether path is present. The lookup is case-sensitive.
func (bm *PathBiMap) HasPath(path string) bool {
	_, ok := bm.pathToID[path]
	return ok
}

// RemovePath removes path from the map. The id remains if other paths still
// reference it. It returns whether path was present.
func (bm *PathBiMap) RemovePath(path string) bool {
	id, ok := bm.pathToID[path]
	if !ok {
		return false
	}
	delete(bm.pathToID, path)
	key := strings.ToLower(id)
	paths := bm.idToPaths[key]
	for i, p := range paths {
		if p == path {
			if len(paths) == 1 {
				delete(bm.idToPaths, key)
			} else {
				bm.idToPaths[key] = append(paths[:i:i], paths[i+1:]...)
			}
			break
		}
	}
	return true
}

// EachPath calls fn for every (path, id) pair.
func (bm *PathBiMap) EachPath(fn func(path, id string) error) error {
	for path, id := range bm.pathToID {
		if err := fn(path, id); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of paths in the map.
func (bm *PathBiMap) Len() int {
	return len(bm.pathToID)
}
