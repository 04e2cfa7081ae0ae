package ocfl_test

import (
	"testing"

	"github.com/archivekit/ocfl"
	"github.com/matryer/is"
)

func TestPathBiMap(t *testing.T) {
	is := is.New(t)
	bm := ocfl.NewPathBiMap()
	bm.Put("abc", "p1")
	bm.Put("abc", "p2")
	is.Equal(bm.Len(), 2)
	// id lookups are case-insensitive
	is.Equal(bm.GetPaths("ABC"), []string{"p1", "p2"})
	// path lookups are case-sensitive
	id, ok := bm.GetFileID("p1")
	is.True(ok)
	is.Equal(id, "abc")
	_, ok = bm.GetFileID("P1")
	is.True(!ok)
	// removing one path leaves the id with its other paths
	is.True(bm.RemovePath("p1"))
	is.Equal(bm.GetPaths("ABC"), []string{"p2"})
	// removing the last path removes the id
	is.True(bm.RemovePath("p2"))
	is.Equal(len(bm.GetPaths("abc")), 0)
	is.True(!bm.RemovePath("p2"))
}

func TestPathBiMapReassign(t *testing.T) {
	is := is.New(t)
	bm := ocfl.NewPathBiMap()
	bm.Put("abc", "path")
	// reassigning a path to a new id removes the old association
	bm.Put("def", "path")
	id, ok := bm.GetFileID("path")
	is.True(ok)
	is.Equal(id, "def")
	is.Equal(len(bm.GetPaths("abc")), 0)
	is.Equal(bm.GetPaths("def"), []string{"path"})
}

func TestPathBiMapEachPath(t *testing.T) {
	is := is.New(t)
	bm := ocfl.NewPathBiMap()
	bm.Put("abc", "p1")
	bm.Put("def", "p2")
	seen := map[string]string{}
	is.NoErr(bm.EachPath(func(path, id string) error {
		seen[path] = id
		return nil
	}))
	is.Equal(seen, map[string]string{"p1": "abc", "p2": "def"})
}
