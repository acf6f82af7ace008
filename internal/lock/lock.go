// Package lock implements advisory file locking with flock semantics:
// shared, exclusive, and unlock, each with a non-blocking try form and a
// context-cancelable waiting form that busy-polls with bounded backoff
// (this package has no kernel-notify primitive to block on).
package lock

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/javanhut/castore/internal/xerrors"
)

// Type identifies the kind of advisory lock requested.
type Type int

const (
	Read Type = iota
	Write
	Unlock
)

func (t Type) op() int {
	switch t {
	case Read:
		return unix.LOCK_SH
	case Write:
		return unix.LOCK_EX
	default:
		return unix.LOCK_UN
	}
}

const (
	pollInitial = 2 * time.Millisecond
	pollMax     = 200 * time.Millisecond
)

// Try attempts to acquire ty on f without blocking. It reports (false, nil)
// if the lock is currently held elsewhere.
func Try(f *os.File, ty Type) (bool, error) {
	err := unix.Flock(int(f.Fd()), ty.op()|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return false, nil
	}
	return false, &xerrors.LockIOError{Path: f.Name(), Err: err}
}

// Wait acquires ty on f, busy-polling with bounded exponential backoff
// until it succeeds or ctx is done.
func Wait(ctx context.Context, f *os.File, ty Type) error {
	backoff := pollInitial
	for {
		ok, err := Try(f, ty)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > pollMax {
			backoff = pollMax
		}
	}
}
