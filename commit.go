package ocfl

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/archivekit/ocfl/backend"
	"github.com/archivekit/ocfl/digest"
	"github.com/archivekit/ocfl/lock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const stagingInfix = "_staging_"

// ErrCommitConflict is reported when the object's head version changed
// between staging and commit.
var ErrCommitConflict = errors.New("object was modified since the update was staged")

// CommitError wraps an error from Commit.
type CommitError struct {
	Err error // the wrapped error

	// Dirty indicates the object may be incomplete or invalid as a result
	// of the error. Errors before version promotion never leave the object
	// dirty: the staged version is rolled back.
	Dirty bool
}

func (c CommitError) Error() string {
	return c.Err.Error()
}

func (c CommitError) Unwrap() error {
	return c.Err
}

// commitOpt holds options configured with CommitOptions.
type commitOpt struct {
	requireHEAD    int  // new version must have this number (if non-zero)
	allowUnchanged bool // allow a new version with the same state as the last
	concurrency    int  // parallel content transfers
}

// CommitOption configures Commit.
type CommitOption func(*commitOpt)

// WithHEAD constrains the version number created by the commit. For example,
// WithHEAD(1) causes the commit to fail if the object already exists.
func WithHEAD(v int) CommitOption {
	return func(c *commitOpt) { c.requireHEAD = v }
}

// WithAllowUnchanged allows committing a version whose state equals the
// existing head version's state.
func WithAllowUnchanged() CommitOption {
	return func(c *commitOpt) { c.allowUnchanged = true }
}

// WithConcurrency sets the number of parallel content transfers during
// commit. The default is 4.
func WithConcurrency(n int) CommitOption {
	return func(c *commitOpt) { c.concurrency = n }
}

// Stage opens an update session for the object with the given id and
// returns an Updater for staging the object's next version. If the object
// doesn't exist yet, the updater stages v1 of a new object using alg as the
// primary digest algorithm; otherwise alg may be nil and the object's
// algorithm is used. Staging happens outside the object's write lock:
// content is digested and spooled before Commit acquires it.
func (r *Root) Stage(ctx context.Context, objectID string, alg digest.Algorithm, opts ...UpdaterOption) (*Updater, error) {
	objPath, err := r.ObjectPath(objectID)
	if err != nil {
		return nil, err
	}
	var base *Inventory
	err = r.locks.ReadLock(ctx, objectID, func() error {
		obj, err := r.openObjectLocked(ctx, objectID, objPath)
		if err != nil {
			if errors.Is(err, backend.ErrNotExist) {
				return nil // new object
			}
			return err
		}
		base = obj.Inventory()
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			r.metrics.LockTimeout()
		}
		return nil, err
	}
	if base == nil {
		if alg == nil {
			return nil, fmt.Errorf("object %q doesn't exist and no digest algorithm was given", objectID)
		}
		if base, err = NewInventory(objectID, alg); err != nil {
			return nil, err
		}
	} else if alg != nil && alg.ID() != base.DigestAlgorithm {
		return nil, fmt.Errorf("object's digest algorithm (%s) doesn't match the requested algorithm (%s)",
			base.DigestAlgorithm, alg.ID())
	}
	opts = append([]UpdaterOption{WithUpdaterMetrics(r.metrics)}, opts...)
	return NewUpdater(base, opts...)
}

// Commit finalizes the staged update and promotes it as the object's next
// version: the staged version directory is assembled under a temporary
// staging path, content is transferred through fixity-checked streams, the
// version inventory and sidecar are written, and the staging directory is
// renamed to the version directory in a single move. Any failure before the
// rename rolls the staging directory back, leaving the object unchanged.
func (r *Root) Commit(ctx context.Context, objectID string, u *Updater, opts ...CommitOption) (*Inventory, error) {
	start := time.Now()
	opt := &commitOpt{concurrency: 4}
	for _, o := range opts {
		o(opt)
	}
	inv, err := u.Build()
	if err != nil {
		r.metrics.Commit("invalid", time.Since(start))
		return nil, &CommitError{Err: err}
	}
	spool, writes, err := u.NewContent()
	if err != nil {
		return nil, &CommitError{Err: err}
	}
	objPath, err := r.ObjectPath(objectID)
	if err != nil {
		return nil, &CommitError{Err: err}
	}
	var commitErr error
	err = r.locks.WriteLock(ctx, objectID, func() error {
		defer func() {
			// the on-disk inventory may have changed; never let a stale
			// entry outlive the write lock
			if r.cache != nil {
				r.cache.Invalidate(objectID)
			}
		}()
		commitErr = r.commitLocked(ctx, objectID, objPath, inv, spool, writes, opt)
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			r.metrics.LockTimeout()
		}
		r.metrics.Commit("lock_timeout", time.Since(start))
		return nil, err
	}
	if commitErr != nil {
		r.metrics.Commit("error", time.Since(start))
		return nil, commitErr
	}
	r.metrics.Commit("ok", time.Since(start))
	return inv, nil
}

func (r *Root) commitLocked(ctx context.Context, objectID, objPath string, inv *Inventory, spool backend.Interface, writes map[string]string, opt *commitOpt) error {
	logger := r.logger.With("object_id", objectID, "object_path", objPath, "head", inv.Head.String())

	// read the current on-disk inventory; its sidecar must verify
	current, err := ReadInventory(ctx, r.b, objPath)
	if err != nil && !errors.Is(err, backend.ErrNotExist) {
		var digestErr *digest.DigestError
		if errors.As(err, &digestErr) {
			r.metrics.FixityFailure()
		}
		return &CommitError{Err: err}
	}
	if err := checkCommitPreconditions(objectID, inv, current, opt); err != nil {
		return &CommitError{Err: err}
	}

	// version directory must not exist
	entries, err := r.b.List(ctx, objPath, false)
	if err != nil && !errors.Is(err, backend.ErrNotExist) {
		return &CommitError{Err: err}
	}
	for _, e := range entries {
		if e.IsDir() && e.Path == inv.Head.String() {
			return &CommitError{Err: fmt.Errorf("version directory %q already exists in %q: %w", inv.Head, objPath, backend.ErrExists)}
		}
	}

	staging := path.Join(objPath, inv.Head.String()+stagingInfix+uuid.NewString())
	logger.DebugContext(ctx, "staging new object version", "staging", staging)
	if err := r.stageVersion(ctx, staging, inv, spool, writes, opt.concurrency); err != nil {
		// roll back: the staged version is removed, HEAD is unchanged
		if rbErr := r.b.DeleteDir(ctx, staging); rbErr != nil {
			logger.Error("rollback failed; staging directory remains", "staging", staging, "error", rbErr)
		}
		return &CommitError{Err: err}
	}

	// promotion point: a single rename within the storage root
	if err := r.b.Move(ctx, staging, path.Join(objPath, inv.Head.String())); err != nil {
		if rbErr := r.b.DeleteDir(ctx, staging); rbErr != nil {
			logger.Error("rollback failed; staging directory remains", "staging", staging, "error", rbErr)
		}
		return &CommitError{Err: fmt.Errorf("promoting staged version: %w", err)}
	}

	// the version is durable; failures past this point leave the object
	// valid but its root-level files stale
	if current == nil {
		decl := Namaste{Type: NamasteTypeObject, Version: Spec}
		if err := WriteDeclaration(ctx, r.b, objPath, decl); err != nil {
			return &CommitError{Err: err, Dirty: true}
		}
	}
	if err := WriteInventory(ctx, r.b, inv, objPath); err != nil {
		return &CommitError{Err: fmt.Errorf("writing root inventory: %w", err), Dirty: true}
	}
	logger.InfoContext(ctx, "committed object version")
	return nil
}

// stageVersion assembles the new version directory at the staging path:
// spooled content is streamed through fixity-checked readers, then the
// version inventory and sidecar are written.
func (r *Root) stageVersion(ctx context.Context, staging string, inv *Inventory, spool backend.Interface, writes map[string]string, concurrency int) error {
	alg, err := digest.DefaultRegistry().Get(inv.DigestAlgorithm)
	if err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)
	prefix := inv.Head.String() + "/"
	for dig, contentPath := range writes {
		dig, contentPath := dig, contentPath
		grp.Go(func() error {
			src, err := spool.Read(grpCtx, dig)
			if err != nil {
				return fmt.Errorf("reading spooled content for %q: %w", contentPath, err)
			}
			defer src.Close()
			fixity := digest.NewReader(src, alg, dig)
			dst := path.Join(staging, strings.TrimPrefix(contentPath, prefix))
			n, err := r.b.Write(grpCtx, dst, fixity, false)
			if err != nil {
				return fmt.Errorf("writing %q: %w", dst, err)
			}
			if err := fixity.CheckFixity(); err != nil {
				r.metrics.FixityFailure()
				return fmt.Errorf("transferring %q: %w", contentPath, err)
			}
			r.metrics.BytesTransferred(n)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	return WriteInventory(ctx, r.b, inv, staging)
}

// checkCommitPreconditions confirms the staged inventory is the valid
// successor of the current on-disk inventory.
func checkCommitPreconditions(objectID string, inv, current *Inventory, opt *commitOpt) error {
	if inv.ID != objectID {
		return fmt.Errorf("staged inventory has id %q, not %q", inv.ID, objectID)
	}
	if opt.requireHEAD > 0 && inv.Head.Num() != opt.requireHEAD {
		return fmt.Errorf("commit is constrained to version number %d, but the staged version has number %d",
			opt.requireHEAD, inv.Head.Num())
	}
	if current == nil {
		if !inv.Head.First() {
			return fmt.Errorf("%w: staged version is %s but the object doesn't exist", ErrCommitConflict, inv.Head)
		}
		return nil
	}
	if current.ID != objectID {
		return fmt.Errorf("object has id %q, not %q", current.ID, objectID)
	}
	if current.DigestAlgorithm != inv.DigestAlgorithm {
		return fmt.Errorf("object's digest algorithm (%s) doesn't match the staged inventory's (%s)",
			current.DigestAlgorithm, inv.DigestAlgorithm)
	}
	next, err := current.Head.Next()
	if err != nil {
		return err
	}
	if inv.Head != next {
		return fmt.Errorf("%w: staged version is %s but the object's next version is %s",
			ErrCommitConflict, inv.Head, next)
	}
	if !opt.allowUnchanged {
		lastState := current.Version(0).State
		newState := inv.Version(0).State
		if lastState.Eq(newState) {
			return errors.New("new version would have the same state as the existing head version")
		}
	}
	return nil
}
