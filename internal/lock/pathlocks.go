package lock

import (
	"context"
	"os"
	"sync"

	"github.com/javanhut/castore/internal/xerrors"
)

// heldLockFiles tracks which lock files this process currently holds through
// any PathLocks value. Acquiring a path twice from the same process would
// self-deadlock under flock (the second open file description blocks on the
// first), so Lock refuses it up front.
var (
	heldMu        sync.Mutex
	heldLockFiles = map[string]bool{}
)

func markHeld(lockPath string) bool {
	heldMu.Lock()
	defer heldMu.Unlock()
	if heldLockFiles[lockPath] {
		return false
	}
	heldLockFiles[lockPath] = true
	return true
}

func markReleased(lockPath string) {
	heldMu.Lock()
	defer heldMu.Unlock()
	delete(heldLockFiles, lockPath)
}

// PathLocks holds a set of exclusive locks acquired together, so they can
// be released as a unit. The zero value is ready to use.
type PathLocks struct {
	files []*os.File
}

// Lock acquires an exclusive lock on paths[i]+".lock" for every i, in the
// order given, detecting and retrying stale lock files left behind by a
// holder that crashed between open and write (a lock file whose size is
// nonzero after acquisition is stale: the prior holder never truncated it).
//
// If wait is false and any lock is held by another process, Lock releases
// everything it acquired so far and returns (false, nil) rather than
// blocking. A path already locked by this process fails with DeadlockError
// instead: waiting on our own flock would never return.
func (pl *PathLocks) Lock(ctx context.Context, paths []string, wait bool) (bool, error) {
	if len(pl.files) != 0 {
		panic("lock: PathLocks.Lock called on an already-locked set")
	}
	for _, p := range paths {
		lockPath := p + ".lock"
		if !markHeld(lockPath) {
			pl.Unlock()
			return false, &xerrors.DeadlockError{Detail: "path " + p + " is already locked by this process"}
		}
		f, err := lockOne(ctx, lockPath, wait)
		if err != nil || f == nil {
			markReleased(lockPath)
			pl.Unlock()
			return false, err
		}
		pl.files = append(pl.files, f)
	}
	return true, nil
}

// lockOne acquires an exclusive lock on lockPath, retrying on stale lock
// files. It returns (nil, nil) when wait is false and the lock is contended.
func lockOne(ctx context.Context, lockPath string, wait bool) (*os.File, error) {
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, err
		}

		acquired, err := Try(f, Write)
		if err != nil {
			f.Close()
			return nil, err
		}
		if !acquired {
			if !wait {
				f.Close()
				return nil, nil
			}
			if err := Wait(ctx, f, Write); err != nil {
				f.Close()
				return nil, err
			}
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if info.Size() != 0 {
			// Previous holder crashed before truncating on release.
			// We hold the lock now, so it's safe to clear the stale
			// content ourselves before retrying.
			f.Truncate(0)
			Try(f, Unlock)
			f.Close()
			continue
		}

		return f, nil
	}
}

// Unlock releases every lock held by pl, truncating each lock file to zero
// first so the next holder's stale-lock check passes.
func (pl *PathLocks) Unlock() {
	for _, f := range pl.files {
		f.Truncate(0)
		Try(f, Unlock)
		f.Close()
		markReleased(f.Name())
	}
	pl.files = nil
}
