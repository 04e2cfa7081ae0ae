// Package extensions implements OCFL community extensions, including the
// storage layout extensions that map object ids to paths in a storage root.
package extensions

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknown is returned when an extension name isn't in the registry.
	ErrUnknown = errors.New("unrecognized extension")
	// ErrNotLayout is returned when an extension is used as a layout but
	// doesn't implement Layout.
	ErrNotLayout = errors.New("extension is not a layout")
	// ErrLayoutID is returned by a LayoutFunc when an object id can't be
	// mapped by the layout.
	ErrLayoutID = errors.New("id is invalid for the layout")
)

// Extension is implemented by all OCFL extensions.
type Extension interface {
	// Name returns the extension's registered name
	// (e.g. "0002-flat-direct-storage-layout").
	Name() string
}

// Layout is the interface for storage layout extensions.
type Layout interface {
	Extension
	// NewFunc validates the extension's configuration and returns the
	// layout's mapping function.
	NewFunc() (LayoutFunc, error)
}

// LayoutFunc maps an object id to a path in the storage root, or returns an
// error wrapping ErrLayoutID if the id is incompatible with the layout.
type LayoutFunc func(id string) (string, error)

// Registry is an immutable container of Extension constructors.
type Registry struct {
	exts map[string]func() Extension
}

// DefaultRegistry returns a Registry with all built-in extensions.
func DefaultRegistry() Registry {
	return Registry{}.Append(
		func() Extension { return NewLayoutFlatDirect() },
		func() Extension { return NewLayoutHashIDTuple() },
		func() Extension { return NewLayoutHashTuple() },
	)
}

// New returns a new Extension value with default configuration for the given
// extension name, or an error wrapping ErrUnknown if the name is not present
// in the registry.
func (r Registry) New(name string) (Extension, error) {
	extfunc, ok := r.exts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return extfunc(), nil
}

// NewLayout is the same as New with an additional check that the extension is
// a layout.
func (r Registry) NewLayout(name string) (Layout, error) {
	ext, err := r.New(name)
	if err != nil {
		return nil, err
	}
	if layout, isLayout := ext.(Layout); isLayout {
		return layout, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotLayout, name)
}

// Append returns a new Registry that includes extension constructors from r
// plus additional constructors. Added constructors replace existing entries
// with the same name.
func (r Registry) Append(extFns ...func() Extension) Registry {
	newR := Registry{
		exts: make(map[string]func() Extension, len(r.exts)+len(extFns)),
	}
	for n, fn := range r.exts {
		newR.exts[n] = fn
	}
	for _, fn := range extFns {
		newR.exts[fn().Name()] = fn
	}
	return newR
}

// Names returns names of all Extension constructors in r.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.exts))
	for name := range r.exts {
		names = append(names, name)
	}
	return names
}

// Unmarshal decodes an extension config.json and returns a new extension
// instance with the decoded configuration.
func (r Registry) Unmarshal(jsonBytes []byte) (Extension, error) {
	var tmp struct {
		Name string `json:"extensionName"`
	}
	if err := json.Unmarshal(jsonBytes, &tmp); err != nil {
		return nil, err
	}
	config, err := r.New(tmp.Name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jsonBytes, config); err != nil {
		return nil, err
	}
	return config, nil
}
