package ocfl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/archivekit/ocfl/backend"
	"github.com/archivekit/ocfl/extensions"
	"github.com/archivekit/ocfl/lock"
	"github.com/archivekit/ocfl/logging"
	"github.com/archivekit/ocfl/metrics"
)

// ErrNotRoot is reported when a directory is not an OCFL storage root.
var ErrNotRoot = errors.New("not an OCFL storage root")

// layoutConfig is the contents of the storage root's ocfl_layout.json.
type layoutConfig struct {
	Extension   string `json:"extension"`
	Description string `json:"description"`
}

// Root is an OCFL storage root: a backend with a NAMASTE declaration, a
// storage layout, and the objects stored under it.
type Root struct {
	b        backend.Interface
	layout   extensions.Layout
	layoutFn extensions.LayoutFunc
	locks    lock.Lock
	cache    InventoryCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	registry extensions.Registry
	policy   extensions.Policy
	ignore   []string
}

// RootOption configures a Root.
type RootOption func(*Root)

// WithLock sets the object lock implementation. The default is an in-process
// lock with the default timeout.
func WithLock(l lock.Lock) RootOption {
	return func(r *Root) { r.locks = l }
}

// WithInventoryCache sets the inventory cache. The default is no cache.
func WithInventoryCache(c InventoryCache) RootOption {
	return func(r *Root) { r.cache = c }
}

// WithMetrics sets the metrics collectors. The default records nothing.
func WithMetrics(m *metrics.Metrics) RootOption {
	return func(r *Root) { r.metrics = m }
}

// WithRootLogger sets the logger used by root and commit operations.
func WithRootLogger(l *slog.Logger) RootOption {
	return func(r *Root) { r.logger = l }
}

// WithExtensionRegistry sets the extension registry used to resolve layouts.
func WithExtensionRegistry(reg extensions.Registry) RootOption {
	return func(r *Root) { r.registry = reg }
}

// WithExtensionPolicy sets the policy for unrecognized extensions, with an
// optional ignore list of names exempt from the Fail policy.
func WithExtensionPolicy(p extensions.Policy, ignore ...string) RootOption {
	return func(r *Root) {
		r.policy = p
		r.ignore = ignore
	}
}

func newRoot(b backend.Interface, opts ...RootOption) *Root {
	r := &Root{
		b:        b,
		locks:    lock.NewInProcess(),
		logger:   logging.DisabledLogger(),
		registry: extensions.DefaultRegistry(),
		policy:   extensions.Fail,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Root) evaluator() extensions.SupportEvaluator {
	return extensions.SupportEvaluator{
		Registry: r.registry,
		Policy:   r.policy,
		Ignore:   r.ignore,
		Logger:   r.logger,
	}
}

// InitRoot initializes an OCFL storage root on b: the NAMASTE declaration,
// the layout advertisement, and the layout extension's config are written.
// The backend's top-level directory must not already hold a storage root.
func InitRoot(ctx context.Context, b backend.Interface, layout extensions.Layout, opts ...RootOption) (*Root, error) {
	r := newRoot(b, opts...)
	decl := Namaste{Type: NamasteTypeRoot, Version: Spec}
	exists, err := b.Exists(ctx, decl.Name())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("initializing storage root: %w", backend.ErrExists)
	}
	layoutFn, err := layout.NewFunc()
	if err != nil {
		return nil, err
	}
	if err := WriteDeclaration(ctx, b, ".", decl); err != nil {
		return nil, err
	}
	conf := layoutConfig{
		Extension:   layout.Name(),
		Description: fmt.Sprintf("OCFL object layout using %s", layout.Name()),
	}
	confBytes, err := json.Marshal(conf)
	if err != nil {
		return nil, err
	}
	if _, err := b.Write(ctx, layoutFile, bytes.NewReader(confBytes), false); err != nil {
		return nil, fmt.Errorf("writing %s: %w", layoutFile, err)
	}
	if err := extensions.WriteConfig(ctx, b, ".", layout); err != nil {
		return nil, err
	}
	r.layout = layout
	r.layoutFn = layoutFn
	return r, nil
}

// OpenRoot opens an existing OCFL storage root on b. The NAMASTE declaration
// is validated and the layout named by ocfl_layout.json is resolved through
// the extension registry, applying the root's extension policy to
// unrecognized names.
func OpenRoot(ctx context.Context, b backend.Interface, opts ...RootOption) (*Root, error) {
	r := newRoot(b, opts...)
	decl := Namaste{Type: NamasteTypeRoot, Version: Spec}
	if err := ValidateNamaste(ctx, b, decl.Name()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRoot, err)
	}
	confBytes, err := backend.ReadAll(ctx, b, layoutFile)
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			// a root without a layout advertisement supports access by
			// explicit object path only
			return r, nil
		}
		return nil, err
	}
	var conf layoutConfig
	if err := json.Unmarshal(confBytes, &conf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", layoutFile, err)
	}
	supported, err := r.evaluator().Check(conf.Extension)
	if err != nil {
		return nil, err
	}
	if !supported {
		return r, nil
	}
	layout, err := r.registry.NewLayout(conf.Extension)
	if err != nil {
		return nil, err
	}
	if err := extensions.ReadConfig(ctx, b, ".", layout); err != nil {
		return nil, err
	}
	layoutFn, err := layout.NewFunc()
	if err != nil {
		return nil, err
	}
	r.layout = layout
	r.layoutFn = layoutFn
	return r, nil
}

// Layout returns the root's layout extension, or nil if the root has none
// (or an unsupported one under the Warn policy).
func (r *Root) Layout() extensions.Layout {
	return r.layout
}

// ObjectPath maps an object id to its object root path via the storage
// layout.
func (r *Root) ObjectPath(id string) (string, error) {
	if r.layoutFn == nil {
		return "", fmt.Errorf("%w: storage root has no resolvable layout", extensions.ErrUnknown)
	}
	p, err := r.layoutFn(id)
	if err != nil {
		return "", err
	}
	return p, nil
}

// OpenObject opens the object with the given id, resolving its path through
// the storage layout. The object's inventory is read through the inventory
// cache when one is configured.
func (r *Root) OpenObject(ctx context.Context, id string) (*Object, error) {
	objPath, err := r.ObjectPath(id)
	if err != nil {
		return nil, err
	}
	var obj *Object
	err = r.locks.ReadLock(ctx, id, func() error {
		var lockErr error
		obj, lockErr = r.openObjectLocked(ctx, id, objPath)
		return lockErr
	})
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			r.metrics.LockTimeout()
		}
		return nil, err
	}
	return obj, nil
}

func (r *Root) openObjectLocked(ctx context.Context, id, objPath string) (*Object, error) {
	if r.cache != nil {
		if inv := r.cache.Get(id); inv != nil {
			if err := r.checkObjectExtensions(ctx, objPath); err != nil {
				return nil, err
			}
			return &Object{b: r.b, path: objPath, inventory: inv}, nil
		}
	}
	obj, err := OpenObjectAt(ctx, r.b, objPath)
	if err != nil {
		return nil, err
	}
	if obj.ID() != id {
		return nil, fmt.Errorf("%w: object at %q has id %q, not %q",
			ErrInventoryCorrupt, objPath, obj.ID(), id)
	}
	if err := r.checkObjectExtensions(ctx, objPath); err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Put(id, obj.Inventory())
	}
	return obj, nil
}

// checkObjectExtensions applies the root's extension policy to the entries
// of the object's extensions directory.
func (r *Root) checkObjectExtensions(ctx context.Context, objPath string) error {
	entries, err := r.b.List(ctx, path.Join(objPath, "extensions"), false)
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil
		}
		return err
	}
	eval := r.evaluator()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := eval.Check(e.Path); err != nil {
			return err
		}
	}
	return nil
}

// CleanupStaging removes leftover staging directories for the object with
// the given id. Staging directories can remain after a crashed commit; they
// are never part of the committed object.
func (r *Root) CleanupStaging(ctx context.Context, id string) error {
	objPath, err := r.ObjectPath(id)
	if err != nil {
		return err
	}
	return r.locks.WriteLock(ctx, id, func() error {
		entries, err := r.b.List(ctx, objPath, false)
		if err != nil {
			if errors.Is(err, backend.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			if !e.IsDir() || !strings.Contains(e.Path, stagingInfix) {
				continue
			}
			r.logger.Info("removing stale staging directory", "object_id", id, "dir", e.Path)
			if err := r.b.DeleteDir(ctx, path.Join(objPath, e.Path)); err != nil {
				return err
			}
		}
		return nil
	})
}
