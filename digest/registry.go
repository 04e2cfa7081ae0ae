package digest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownAlg is returned when a registry lookup fails.
var ErrUnknownAlg = errors.New("unknown digest algorithm")

// Registry maps algorithm ids to Algorithms. Lookups are case-insensitive on
// the id; registration overwrites any existing entry with the same id. The
// zero value is not usable: use NewRegistry or DefaultRegistry. A Registry is
// safe for concurrent use.
type Registry struct {
	algs *sync.Map
}

// NewRegistry returns a Registry with all built-in algorithms.
func NewRegistry() Registry {
	reg := Registry{algs: &sync.Map{}}
	reg.Register(
		SHA512,
		SHA256,
		SHA1,
		MD5,
		BLAKE2B,
		BLAKE2B_160,
		BLAKE2B_256,
		BLAKE2B_384,
		SHA512_256,
		SIZE,
	)
	return reg
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by package-level functions and by
// callers that don't construct their own.
func DefaultRegistry() Registry {
	return defaultRegistry
}

// Register adds algs to the registry, replacing existing entries with the
// same id.
func (r Registry) Register(algs ...Algorithm) {
	for _, alg := range algs {
		r.algs.Store(strings.ToLower(alg.ID()), alg)
	}
}

// Get returns the Algorithm registered under id. The lookup is
// case-insensitive.
func (r Registry) Get(id string) (Algorithm, error) {
	alg, ok := r.algs.Load(strings.ToLower(id))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlg, id)
	}
	return alg.(Algorithm), nil
}

// MustGet is like Get but panics if id isn't registered.
func (r Registry) MustGet(id string) Algorithm {
	alg, err := r.Get(id)
	if err != nil {
		panic(err)
	}
	return alg
}

// GetAny returns Algorithms for all ids registered in r, ignoring ids that
// aren't.
func (r Registry) GetAny(ids ...string) []Algorithm {
	algs := make([]Algorithm, 0, len(ids))
	for _, id := range ids {
		if alg, err := r.Get(id); err == nil {
			algs = append(algs, alg)
		}
	}
	return algs
}
