// Package lock provides per-object read/write serialization for the OCFL
// engine. Operations on distinct objects proceed in parallel; on the same
// object, readers share and a writer excludes everyone. Acquisition is
// bounded by a configurable timeout.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when a lock can't be acquired before the configured
// timeout.
var ErrTimeout = errors.New("lock acquisition timed out")

// DefaultTimeout bounds lock acquisition when no timeout option is given.
const DefaultTimeout = 250 * time.Millisecond

// maxHolders caps concurrent readers per object. A writer acquires the full
// weight, excluding all readers.
const maxHolders = 1 << 30

// Lock serializes operations on an object id. Implementations must release
// on all exit paths, including a panic in fn.
type Lock interface {
	// ReadLock runs fn while holding a shared lock on id.
	ReadLock(ctx context.Context, id string, fn func() error) error
	// WriteLock runs fn while holding an exclusive lock on id.
	WriteLock(ctx context.Context, id string, fn func() error) error
}

// InProcess is a process-local Lock. Lock state per object id is reference
// counted: an entry exists only while some goroutine holds or waits on it.
type InProcess struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

var _ Lock = (*InProcess)(nil)

// Option configures an InProcess lock.
type Option func(*InProcess)

// WithTimeout sets the lock acquisition timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *InProcess) { l.timeout = d }
}

// NewInProcess returns an InProcess lock with the default timeout.
func NewInProcess(opts ...Option) *InProcess {
	l := &InProcess{
		entries: map[string]*entry{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InProcess) ReadLock(ctx context.Context, id string, fn func() error) error {
	return l.do(ctx, id, 1, fn)
}

func (l *InProcess) WriteLock(ctx context.Context, id string, fn func() error) error {
	return l.do(ctx, id, maxHolders, fn)
}

func (l *InProcess) do(ctx context.Context, id string, weight int64, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquiring lock for %q: %w", id, err)
	}
	e := l.retain(id)
	defer l.release(id)
	acquireCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := e.sem.Acquire(acquireCtx, weight); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("acquiring lock for %q: %w", id, ctxErr)
		}
		return fmt.Errorf("acquiring lock for %q: %w", id, ErrTimeout)
	}
	defer e.sem.Release(weight)
	return fn()
}

// retain returns the entry for id, creating it if needed, and increments its
// reference count.
func (l *InProcess) retain(id string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	if e == nil {
		e = &entry{sem: semaphore.NewWeighted(maxHolders)}
		l.entries[id] = e
	}
	e.refs++
	return e
}

// release decrements the entry's reference count, removing it at zero.
func (l *InProcess) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	if e == nil {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// Len returns the number of object ids with live lock state.
func (l *InProcess) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
