//go:build unix

package badger

import (
	"os"
	"syscall"
)

// diskUsage returns the allocated size of a file.  Badger memory-maps
// preallocated memtable and value log files, so their apparent size is far
// larger than the data written.
func diskUsage(info os.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(st.Blocks) * 512
	}
	return info.Size()
}
