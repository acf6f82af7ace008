package lock

import (
	"context"
	"os"
)

// GCLock wraps the single gc.lock file: mutating store operations hold it
// shared (permitting concurrent writers, excluding the collector), and the
// collector holds it exclusive (excluding every writer).
type GCLock struct {
	path string
	f    *os.File
}

// NewGCLock opens (without locking) the gc.lock file at path, creating it
// if absent.
func NewGCLock(path string) (*GCLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &GCLock{path: path, f: f}, nil
}

// AcquireShared blocks until a shared hold is available (i.e. no collector
// holds the lock exclusively).
func (g *GCLock) AcquireShared(ctx context.Context) error {
	return Wait(ctx, g.f, Read)
}

// AcquireExclusive blocks until every writer has released the lock.
func (g *GCLock) AcquireExclusive(ctx context.Context) error {
	return Wait(ctx, g.f, Write)
}

// Release drops whatever hold is currently held.
func (g *GCLock) Release() error {
	_, err := Try(g.f, Unlock)
	return err
}

// Close releases the lock and closes the underlying file descriptor.
func (g *GCLock) Close() error {
	g.Release()
	return g.f.Close()
}
