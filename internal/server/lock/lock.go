// Package lock provides a best-effort, TTL-bounded mutual-exclusion lease
// on a single key in Redis.
//
// It is advisory only. There is no fencing token and release deletes the
// key whoever holds it, so a holder that stalls past the TTL can lose the
// lease while still running its critical section. Keep critical sections
// well under the TTL and back data integrity with store constraints.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/logging"
)

// ErrUnavailable means the lock store is unconfigured or unreachable. It is
// distinct from a denied acquisition, which is not an error.
var ErrUnavailable = errors.New("lock store unavailable")

// holderValue is stored under every lock key.
const holderValue = "1"

// releaseTimeout bounds the DEL issued by Guard.Release.
const releaseTimeout = 2 * time.Second

// Store is the key-value backend: an atomic set-if-absent with expiry and
// a delete.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Options are the defaults used by TryLock.
type Options struct {
	TTL         time.Duration
	MaxAttempts int
	RetryDelay  time.Duration

	// Observe, when set, is told the outcome of every TryLock.
	Observe func(Outcome)
}

var DefaultOptions = Options{
	TTL:         10 * time.Second,
	MaxAttempts: 3,
	RetryDelay:  100 * time.Millisecond,
}

// Locker acquires and releases leases. A nil store yields a Locker whose
// every call reports ErrUnavailable. Safe for concurrent use.
type Locker struct {
	store  Store
	opts   Options
	logger logging.Logger
}

func NewLocker(store Store, opts Options, logger logging.Logger) *Locker {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Locker{store: store, opts: opts, logger: logger.With("module", "lock")}
}

// Enabled reports whether a store is configured.
func (l *Locker) Enabled() bool {
	return l.store != nil
}

// Acquire tries to create key with the given ttl, making at most
// maxAttempts attempts and sleeping retryDelay between them (not after the
// last). It returns true once the key was set and false when every attempt
// found it held. Cancellation of ctx is reported as (false, nil): a timed
// out acquisition is simply not acquired, and the caller can inspect
// ctx.Err() if it cares. Store failures are returned wrapped in
// ErrUnavailable.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration, maxAttempts int, retryDelay time.Duration) (bool, error) {
	if l.store == nil {
		return false, ErrUnavailable
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		ok, err := l.store.SetNX(ctx, key, holderValue, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ok {
			l.logger.Debug(ctx, "lock acquired", "key", key, "attempt", attempt)
			return true, nil
		}
		if attempt >= maxAttempts {
			l.logger.Debug(ctx, "lock denied", "key", key, "attempts", attempt)
			return false, nil
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, nil
		case <-timer.C:
		}
	}
}

// Release deletes key unconditionally. Deleting a missing key succeeds.
func (l *Locker) Release(ctx context.Context, key string) error {
	if l.store == nil {
		return ErrUnavailable
	}
	if err := l.store.Del(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// TryLock acquires key with the Locker's default options and reports the
// result as an Attempt.
func (l *Locker) TryLock(ctx context.Context, key string) Attempt {
	ok, err := l.Acquire(ctx, key, l.opts.TTL, l.opts.MaxAttempts, l.opts.RetryDelay)

	var a Attempt
	switch {
	case err != nil:
		a = Attempt{Outcome: Unavailable, Err: err}
	case ok:
		a = Attempt{Outcome: Acquired, Guard: &Guard{locker: l, key: key}}
	default:
		a = Attempt{Outcome: Denied}
	}

	if l.opts.Observe != nil {
		l.opts.Observe(a.Outcome)
	}
	return a
}

// Outcome is the result class of a lock attempt.
type Outcome int

const (
	Denied Outcome = iota
	Acquired
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case Denied:
		return "denied"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Attempt is what TryLock returns. Guard is set only for Acquired, Err only
// for Unavailable.
type Attempt struct {
	Outcome Outcome
	Guard   *Guard
	Err     error
}

// Guard represents a held lease. Release it exactly once, typically with
// defer; further calls are no-ops that return nil.
type Guard struct {
	locker   *Locker
	key      string
	released atomic.Bool
}

func (g *Guard) Key() string { return g.key }

// Release deletes the lease. It runs even if ctx is already cancelled, with
// its own short timeout, so a finished request still frees the key.
func (g *Guard) Release(ctx context.Context) error {
	if !g.released.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := g.locker.Release(ctx, g.key); err != nil {
		g.locker.logger.Warn(ctx, "lock release failed; lease will expire by ttl", "key", g.key, "error", err)
		return err
	}
	return nil
}
