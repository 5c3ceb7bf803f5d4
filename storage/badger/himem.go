//go:build !lowmem

package badger

import (
	"github.com/dgraph-io/badger/v3"
)

// MemoryProfile names the badger memory settings compiled into this binary.
const MemoryProfile = "default"

func baseOptions(path string) badger.Options {
	return badger.DefaultOptions(path)
}
