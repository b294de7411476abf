package lock

import "errors"

// ErrLockTimeout is returned when a key's lock is not acquired before the
// wait deadline.
var ErrLockTimeout = errors.New("lock acquisition timeout")
