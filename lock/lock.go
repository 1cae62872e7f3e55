// Package lock provides the single-writer lock every mutating ledger
// operation runs under.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotObtained is returned when the lock cannot be acquired before the
// context ends or the retry budget runs out.
var ErrNotObtained = errors.New("cocoa: ledger lock not obtained")

// Locker hands out exclusive locks by key.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Local is an in-process Locker. Keys are independent.
type Local struct {
	sems chanMap
}

// NewLocal returns an in-process Locker.
func NewLocal() *Local {
	return &Local{sems: newChanMap()}
}

// Obtain blocks until the key is free or ctx is done.
func (l *Local) Obtain(ctx context.Context, key string) (Lock, error) {
	sem := l.sems.get(key)
	select {
	case sem <- struct{}{}:
		return localLock(sem), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrNotObtained, key, ctx.Err())
	}
}

type localLock chan struct{}

func (l localLock) Release(context.Context) error {
	select {
	case <-l:
		return nil
	default:
		return errors.New("lock: release of unheld lock")
	}
}
