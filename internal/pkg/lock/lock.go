// Package lock provides per-key locking so that every read-modify-write of a
// keyed record (a player's balance, stats and modifier) is serialized without
// a global lock.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex is a one-slot semaphore. A channel lets waiters give up when
// their context ends, which sync.Mutex cannot.
type keyMutex struct {
	ch chan struct{}
}

func newKeyMutex() *keyMutex {
	return &keyMutex{ch: make(chan struct{}, 1)}
}

// KeyedLock hands out one lock per key. Locks for different keys never
// contend with each other.
type KeyedLock struct {
	locks sync.Map // map[string]*keyMutex
}

// NewKeyedLock creates a new KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{}
}

func (kl *KeyedLock) get(key string) *keyMutex {
	if v, ok := kl.locks.Load(key); ok {
		return v.(*keyMutex)
	}
	actual, _ := kl.locks.LoadOrStore(key, newKeyMutex())
	return actual.(*keyMutex)
}

// Lock blocks until the lock for key is held.
func (kl *KeyedLock) Lock(key string) {
	kl.get(key).ch <- struct{}{}
}

// Unlock releases the lock for key. Unlocking a key that is not locked is a no-op.
func (kl *KeyedLock) Unlock(key string) {
	if v, ok := kl.locks.Load(key); ok {
		select {
		case <-v.(*keyMutex).ch:
		default:
		}
	}
}

// TryLock acquires the lock for key without blocking.
func (kl *KeyedLock) TryLock(key string) bool {
	select {
	case kl.get(key).ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockContext waits for the lock for key until ctx ends or timeout passes.
// A timeout of zero waits for ctx alone.
func (kl *KeyedLock) LockContext(ctx context.Context, key string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case kl.get(key).ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock runs fn while holding the lock for key.
func (kl *KeyedLock) WithLock(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the lock for key, giving up with
// ErrLockTimeout if the lock is not acquired in time.
func (kl *KeyedLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if err := kl.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held. The answer may be stale
// by the time the caller reads it.
func (kl *KeyedLock) IsLocked(key string) bool {
	v, ok := kl.locks.Load(key)
	if !ok {
		return false
	}
	return len(v.(*keyMutex).ch) == 1
}
