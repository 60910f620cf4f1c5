//go:build linux

package indexer

import (
	"os"
	"syscall"
	"time"
)

// changeTime returns the inode change time, the closest Linux offers to a
// creation time without statx.
func changeTime(info os.FileInfo) *time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	t := time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	return &t
}
