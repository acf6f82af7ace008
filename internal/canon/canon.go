// Package canon normalizes filesystem metadata on a freshly materialized
// store path so that two trees with identical content produce byte-
// identical archives, regardless of which filesystem or process created
// them.
package canon

import (
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/javanhut/castore/internal/xerrors"
)

// selinuxAttr is the one extended attribute canonicalization preserves.
const selinuxAttr = "security.selinux"

// Path recursively canonicalizes root: clears BSD file flags, strips
// extended attributes (except security.selinux), normalizes ownership to
// the calling process's effective UID/GID, forces permissions to 0444 (or
// 0444|0111 when user-executable), and sets mtime to 1 second since the
// epoch. It rejects any file that is not regular, a directory, or a
// symlink.
func Path(root string) error {
	known := make(map[[2]uint64]bool)
	return walk(root, known)
}

func walk(path string, known map[[2]uint64]bool) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if err := one(path, info, known); err != nil {
		return err
	}
	if info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)
		for _, name := range names {
			if err := walk(filepath.Join(path, name), known); err != nil {
				return err
			}
		}
	}
	return nil
}

func one(path string, info os.FileInfo, known map[[2]uint64]bool) error {
	if err := clearFlags(path); err != nil {
		return err
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0, mode.IsDir(), mode.IsRegular():
	default:
		return &xerrors.UnsupportedFileTypeError{Path: path}
	}

	if mode&os.ModeSymlink == 0 {
		if err := stripXattrs(path); err != nil {
			return err
		}
	}

	if err := normalizeOwnership(path, info, known); err != nil {
		return err
	}

	if mode&os.ModeSymlink == 0 {
		perm := os.FileMode(0444)
		if mode&0100 != 0 {
			perm |= 0111
		}
		if err := os.Chmod(path, perm); err != nil {
			return err
		}
	}

	return normalizeTimestamps(path, info)
}

func stripXattrs(path string) error {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		if isUnsupported(err) {
			return nil
		}
		return err
	}
	if size == 0 {
		return nil
	}
	buf := make([]byte, size)
	n, err := unix.Llistxattr(path, buf)
	if err != nil {
		if isUnsupported(err) {
			return nil
		}
		return err
	}
	for _, name := range splitXattrNames(buf[:n]) {
		if name == selinuxAttr {
			continue
		}
		if err := unix.Lremovexattr(path, name); err != nil && !isUnsupported(err) {
			return err
		}
	}
	return nil
}

// splitXattrNames splits the NUL-separated name list llistxattr returns.
func splitXattrNames(buf []byte) []string {
	var names []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return names
}

func isUnsupported(err error) bool {
	return err == unix.ENOTSUP || err == unix.ENODATA || err == unix.EOPNOTSUPP
}

func normalizeOwnership(path string, info os.FileInfo, known map[[2]uint64]bool) error {
	// Ownership normalization targets the process's own effective
	// UID/GID; a path is only re-chowned once per (dev, ino) seen in this
	// traversal, since hard links share identity.
	id, hasID := statIdentity(info)
	if hasID {
		if known[id] {
			return nil
		}
		known[id] = true
	}
	uid, gid := os.Geteuid(), os.Getegid()
	return unix.Fchownat(unix.AT_FDCWD, path, uid, gid, unix.AT_SYMLINK_NOFOLLOW)
}

func normalizeTimestamps(path string, info os.FileInfo) error {
	const fixedMtime = 1
	atime := statAtime(info)
	times := []unix.Timespec{
		atime,
		{Sec: fixedMtime, Nsec: 0},
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, times, unix.AT_SYMLINK_NOFOLLOW)
}
