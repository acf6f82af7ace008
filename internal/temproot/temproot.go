// Package temproot implements the temp-root protocol: a per-process marker
// file that protects a store path from garbage collection for the
// process's lifetime.
package temproot

import (
	"context"
	"fmt"
	"os"

	"github.com/javanhut/castore/internal/lock"
	"github.com/javanhut/castore/internal/storedirs"
)

// Handle is a live temp-root: the marker file, held locked shared for as
// long as the owning process needs the path(s) it records protected.
type Handle struct {
	f *os.File
}

// Acquire runs the temp-root acquisition protocol for the calling
// process's PID, under dirs' layout:
//
//  1. Acquire the GC lock shared (blocks while the collector runs).
//  2. Remove a previous temp-roots file at this PID, if present.
//  3. Open the temp-roots file with exclusive-create semantics.
//  4. Release the GC lock.
//  5. Acquire a shared lock on the temp-roots file.
//  6. If it is still zero-length, done; otherwise another owner beat us
//     to this PID (a reused PID race) — release and retry.
func Acquire(ctx context.Context, dirs storedirs.Dirs, gc *lock.GCLock) (*Handle, error) {
	path := dirs.TempRootPath(os.Getpid())

	for {
		if err := gc.AcquireShared(ctx); err != nil {
			return nil, fmt.Errorf("temproot: acquire gc lock: %w", err)
		}

		os.Remove(path)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err != nil {
			gc.Release()
			return nil, fmt.Errorf("temproot: create %s: %w", path, err)
		}

		if err := gc.Release(); err != nil {
			f.Close()
			return nil, fmt.Errorf("temproot: release gc lock: %w", err)
		}

		if err := lock.Wait(ctx, f, lock.Read); err != nil {
			f.Close()
			return nil, fmt.Errorf("temproot: acquire shared lock on %s: %w", path, err)
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if info.Size() == 0 {
			return &Handle{f: f}, nil
		}

		// Another owner raced us for this PID; release and retry.
		lock.Try(f, lock.Unlock)
		f.Close()
	}
}

// Add appends storePath, followed by a NUL separator, while briefly
// upgrading to an exclusive lock, then downgrades back to shared.
func (h *Handle) Add(ctx context.Context, storePath string) error {
	if err := lock.Wait(ctx, h.f, lock.Write); err != nil {
		return fmt.Errorf("temproot: upgrade to exclusive: %w", err)
	}
	if _, err := h.f.WriteString(storePath + "\x00"); err != nil {
		lock.Try(h.f, lock.Read)
		return fmt.Errorf("temproot: append %s: %w", storePath, err)
	}
	if err := lock.Wait(ctx, h.f, lock.Read); err != nil {
		return fmt.Errorf("temproot: downgrade to shared: %w", err)
	}
	return nil
}

// Close releases the shared lock and closes the marker file. The file
// itself is left in place; a future GC sweep (or the next process to
// reuse this PID) is responsible for removing it.
func (h *Handle) Close() error {
	lock.Try(h.f, lock.Unlock)
	return h.f.Close()
}
