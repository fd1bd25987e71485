package rig

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked reports a rig already being mutated by another run.
var ErrLocked = errors.New("rig is locked by another run")

// Lock is an exclusive advisory lock on a rig document.
type Lock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the lock file next to the rig without blocking.
func AcquireLock(rigPath string) (*Lock, error) {
	lockPath := rigPath + ".lock"
	l := flock.New(lockPath)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire rig lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}
	return &Lock{path: lockPath, lock: l}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release unlocks the rig.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
