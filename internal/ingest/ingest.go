// Package ingest implements the two ways content enters the store:
// add-path, which hashes and archives a path from the host filesystem,
// and add-nar, which verifies and materializes a caller-supplied NAR
// stream against a caller-supplied ValidPathInfo.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/javanhut/castore/internal/archive"
	"github.com/javanhut/castore/internal/canon"
	"github.com/javanhut/castore/internal/catalog"
	"github.com/javanhut/castore/internal/lock"
	"github.com/javanhut/castore/internal/pathalgebra"
	"github.com/javanhut/castore/internal/storedirs"
	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/temproot"
	"github.com/javanhut/castore/internal/xerrors"
	"github.com/javanhut/castore/internal/xhash"
)

// PathCatalog is the slice of the catalog the ingestion pipeline needs:
// validity lookups and transactional registration. Both *catalog.Catalog
// and *catalog.InfoCache satisfy it.
type PathCatalog interface {
	GetPathInfo(ctx context.Context, p storepath.StorePath) (*catalog.ValidPathInfo, error)
	InsertValidPaths(ctx context.Context, infos []catalog.ValidPathInfo) error
}

// Store composes the subsystems the ingestion pipeline needs: the
// directory layout, the catalog, and the GC lock every temp-root
// acquisition must go through.
type Store struct {
	Dirs    storedirs.Dirs
	Catalog PathCatalog
	GC      *lock.GCLock
}

// AddPath canonicalizes hostPath, hashes it (a direct digest for a file, a
// digest over its canonical archive for a directory), derives its fixed-
// output store path, and materializes it into the store if not already
// valid. repair forces re-materialization of a path that is already valid,
// overwriting whatever is on disk.
func (s *Store) AddPath(ctx context.Context, name, hostPath string, algo xhash.Type, filter archive.Filter, repair bool) (storepath.StorePath, error) {
	if err := canon.Path(hostPath); err != nil {
		return storepath.StorePath{}, fmt.Errorf("add-path: canonicalize %s: %w", hostPath, err)
	}

	info, err := os.Lstat(hostPath)
	if err != nil {
		return storepath.StorePath{}, err
	}
	recursive := info.IsDir()

	var h xhash.Hash
	if recursive {
		h, _, err = hashArchive(hostPath, algo, filter)
	} else {
		h, err = hashFile(hostPath, algo)
	}
	if err != nil {
		return storepath.StorePath{}, fmt.Errorf("add-path: hash %s: %w", hostPath, err)
	}

	dest, err := pathalgebra.MakeFixedOutputPath(s.Dirs.StoreDir, recursive, h, name, nil, false)
	if err != nil {
		return storepath.StorePath{}, err
	}

	root, err := temproot.Acquire(ctx, s.Dirs, s.GC)
	if err != nil {
		return storepath.StorePath{}, fmt.Errorf("add-path: %w", err)
	}
	defer root.Close()
	if err := root.Add(ctx, dest.String()); err != nil {
		return storepath.StorePath{}, err
	}

	existing, err := s.Catalog.GetPathInfo(ctx, dest)
	if err != nil {
		return storepath.StorePath{}, err
	}
	if existing != nil && !repair {
		return dest, nil
	}

	destAbs := dest.Absolute(s.Dirs.StoreDir)
	os.RemoveAll(destAbs)
	if recursive {
		if err := archive.Restore(pipeDump(hostPath, filter), archive.NewDiskSink(destAbs), 0); err != nil {
			return storepath.StorePath{}, err
		}
	} else if err := copyFile(hostPath, destAbs, info); err != nil {
		return storepath.StorePath{}, err
	}

	if err := canon.Path(destAbs); err != nil {
		return storepath.StorePath{}, fmt.Errorf("add-path: canonicalize %s: %w", destAbs, err)
	}

	narHash, narSize, err := hashArchive(destAbs, xhash.SHA256, nil)
	if err != nil {
		return storepath.StorePath{}, err
	}

	valid := catalog.ValidPathInfo{
		StorePath:        dest,
		NarHash:          narHash,
		NarSize:          narSize,
		RegistrationTime: time.Now(),
		Ultimate:         true,
	}
	if err := s.Catalog.InsertValidPaths(ctx, []catalog.ValidPathInfo{valid}); err != nil {
		return storepath.StorePath{}, err
	}
	return dest, nil
}

// AddNar verifies and materializes a NAR stream against a caller-supplied
// info. It is idempotent: a second call with identical info and stream is
// a no-op beyond the initial catalog lookups. On hash or size mismatch it
// fails atomically: the real path is removed and no catalog row appears.
func (s *Store) AddNar(ctx context.Context, info catalog.ValidPathInfo, r io.Reader) error {
	if info.NarHash.Algorithm() != xhash.SHA256 {
		return fmt.Errorf("add-nar: nar hash for %s must be SHA-256, got %v", info.StorePath.String(), info.NarHash.Algorithm())
	}

	root, err := temproot.Acquire(ctx, s.Dirs, s.GC)
	if err != nil {
		return fmt.Errorf("add-nar: %w", err)
	}
	defer root.Close()
	if err := root.Add(ctx, info.StorePath.String()); err != nil {
		return err
	}

	if existing, err := s.Catalog.GetPathInfo(ctx, info.StorePath); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	destAbs := info.StorePath.Absolute(s.Dirs.StoreDir)

	var locks lock.PathLocks
	if _, err := locks.Lock(ctx, []string{destAbs}, true); err != nil {
		return fmt.Errorf("add-nar: lock %s: %w", destAbs, err)
	}
	defer locks.Unlock()

	// Double-checked: another process may have registered this path while
	// we waited for the lock.
	if existing, err := s.Catalog.GetPathInfo(ctx, info.StorePath); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	os.RemoveAll(destAbs)

	hashCtx := xhash.New(xhash.SHA256)
	tee := io.TeeReader(r, hashCtx)
	sink := archive.NewDiskSink(destAbs)
	if err := archive.Restore(tee, sink, 0); err != nil {
		os.RemoveAll(destAbs)
		return fmt.Errorf("add-nar: restore %s: %w", destAbs, err)
	}

	gotHash, gotSize := hashCtx.Finish()
	if !gotHash.Equal(info.NarHash) {
		os.RemoveAll(destAbs)
		return &xerrors.NarHashMismatchError{
			Path:     destAbs,
			Expected: xhash.EncodeWithType(info.NarHash, xhash.Base16),
			Actual:   xhash.EncodeWithType(gotHash, xhash.Base16),
		}
	}
	if info.NarSize != 0 && gotSize != info.NarSize {
		os.RemoveAll(destAbs)
		return &xerrors.NarSizeMismatchError{Path: destAbs, Expected: info.NarSize, Actual: gotSize}
	}

	if err := canon.Path(destAbs); err != nil {
		os.RemoveAll(destAbs)
		return fmt.Errorf("add-nar: canonicalize %s: %w", destAbs, err)
	}

	info.RegistrationTime = time.Now()
	info.NarSize = gotSize
	if err := s.Catalog.InsertValidPaths(ctx, []catalog.ValidPathInfo{info}); err != nil {
		os.RemoveAll(destAbs)
		return err
	}
	return nil
}

func hashFile(path string, algo xhash.Type) (xhash.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return xhash.Hash{}, err
	}
	defer f.Close()
	ctx := xhash.New(algo)
	if _, err := io.Copy(ctx, f); err != nil {
		return xhash.Hash{}, err
	}
	h, _ := ctx.Finish()
	return h, nil
}

func hashArchive(path string, algo xhash.Type, filter archive.Filter) (xhash.Hash, uint64, error) {
	ctx := xhash.New(algo)
	if err := archive.Dump(ctx, path, filter); err != nil {
		return xhash.Hash{}, 0, err
	}
	h, n := ctx.Finish()
	return h, n, nil
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	perm := os.FileMode(0644)
	if info.Mode()&0111 != 0 {
		perm = 0755
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// pipeDump dumps hostPath through an in-memory pipe so archive.Restore can
// read it as a stream; add-path materializes a filtered directory by
// dumping then immediately re-parsing, rather than a second tree-walking
// copy codepath.
func pipeDump(hostPath string, filter archive.Filter) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(archive.Dump(pw, hostPath, filter))
	}()
	return pr
}
