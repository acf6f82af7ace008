// Package localstore is the composition root: it wires the directory
// layout, the catalog database, the GC lock, and the ingestion pipeline
// into a single handle a caller opens once and uses for the lifetime of
// a process.
package localstore

import (
	"context"
	"fmt"
	"io"

	"github.com/javanhut/castore/internal/archive"
	"github.com/javanhut/castore/internal/catalog"
	"github.com/javanhut/castore/internal/ingest"
	"github.com/javanhut/castore/internal/lock"
	"github.com/javanhut/castore/internal/storedirs"
	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

// Store is the local store backend: the entry point embedding code and
// cmd/castore use to hash, dump, restore, and register content.
type Store struct {
	Dirs    storedirs.Dirs
	Catalog *catalog.Catalog
	cache   *catalog.InfoCache
	gc      *lock.GCLock
	ingest  *ingest.Store
}

// Open creates the on-disk layout under storeDir/stateDir if missing,
// opens the catalog database, and opens (without locking) the GC lock
// file. The returned Store must be Closed when no longer needed.
func Open(ctx context.Context, storeDir, stateDir string) (*Store, error) {
	dirs := storedirs.Default(storeDir, stateDir)
	if err := dirs.EnsureLayout(); err != nil {
		return nil, fmt.Errorf("localstore: %w", err)
	}

	cat, err := catalog.Open(ctx, dirs.CatalogPath(), dirs.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("localstore: open catalog: %w", err)
	}

	gc, err := lock.NewGCLock(dirs.GCLockPath)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("localstore: open gc lock: %w", err)
	}

	cache := catalog.NewInfoCache(cat, 0)
	return &Store{
		Dirs:    dirs,
		Catalog: cat,
		cache:   cache,
		gc:      gc,
		ingest:  &ingest.Store{Dirs: dirs, Catalog: cache, GC: gc},
	}, nil
}

// Close releases the catalog database handle and the GC lock file.
func (s *Store) Close() error {
	gcErr := s.gc.Close()
	catErr := s.Catalog.Close()
	if catErr != nil {
		return catErr
	}
	return gcErr
}

// AddPath ingests a path from the host filesystem under the store,
// deriving its fixed-output store path from its content. repair forces
// re-materialization of an already-valid path.
func (s *Store) AddPath(ctx context.Context, name, hostPath string, algo xhash.Type, filter archive.Filter, repair bool) (storepath.StorePath, error) {
	return s.ingest.AddPath(ctx, name, hostPath, algo, filter, repair)
}

// AddNar verifies and materializes a NAR stream against a caller-supplied
// ValidPathInfo, registering it in the catalog on success.
func (s *Store) AddNar(ctx context.Context, info catalog.ValidPathInfo, r io.Reader) error {
	return s.ingest.AddNar(ctx, info, r)
}

// QueryPathInfo looks up a path's catalog entry through the info memo,
// returning nil if the path is not valid.
func (s *Store) QueryPathInfo(ctx context.Context, p storepath.StorePath) (*catalog.ValidPathInfo, error) {
	return s.cache.GetPathInfo(ctx, p)
}

// Referrers returns the set of store paths that reference p.
func (s *Store) Referrers(ctx context.Context, p storepath.StorePath) (*storepath.Set, error) {
	return s.Catalog.GetReferrers(ctx, p)
}

// DumpPath archives a valid store path as a NAR stream.
func (s *Store) DumpPath(w io.Writer, p storepath.StorePath) error {
	return archive.Dump(w, p.Absolute(s.Dirs.StoreDir), nil)
}

// AcquireExclusiveGC takes the exclusive GC lock, excluding all writers
// for the duration of a collection run. Callers must Release it.
func (s *Store) AcquireExclusiveGC(ctx context.Context) error {
	return s.gc.AcquireExclusive(ctx)
}

// ReleaseGC releases a lock taken by AcquireExclusiveGC.
func (s *Store) ReleaseGC() error {
	return s.gc.Release()
}
