//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package canon

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func statIdentity(info os.FileInfo) ([2]uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return [2]uint64{}, false
	}
	return [2]uint64{uint64(st.Dev), uint64(st.Ino)}, true
}

func statAtime(info os.FileInfo) unix.Timespec {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return unix.Timespec{}
	}
	return unix.Timespec{Sec: int64(st.Atimespec.Sec), Nsec: int64(st.Atimespec.Nsec)}
}

// clearFlags drops BSD/macOS file flags (e.g. uappnd, uchg) before
// canonicalization proceeds; filesystems that don't support flags report
// ENOTSUP, which is not an error here.
func clearFlags(path string) error {
	if err := unix.Lchflags(path, 0); err != nil && err != unix.ENOTSUP {
		return err
	}
	return nil
}
