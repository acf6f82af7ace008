//go:build linux

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
	return [2]uint64{uint64(st.Dev), st.Ino}, true
}

func statAtime(info os.FileInfo) unix.Timespec {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return unix.Timespec{}
	}
	return unix.Timespec{Sec: st.Atim.Sec, Nsec: st.Atim.Nsec}
}

// clearFlags is a no-op on Linux, which has no BSD-style file flags.
func clearFlags(path string) error {
	return nil
}
