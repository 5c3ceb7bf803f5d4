//go:build !unix

package badger

import "os"

func diskUsage(info os.FileInfo) int64 {
	return info.Size()
}
