//go:build lowmem

package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/gabbenick/artigo-deeplake/lake"
)

// MemoryProfile names the badger memory settings compiled into this binary.
const MemoryProfile = "lowmem"

// baseOptions shrinks memtables and caches for small machines.
func baseOptions(path string) badger.Options {
	lake.Infof("Using Badger with low memory options.")
	return badger.DefaultOptions(path).
		WithMemTableSize(8 << 20).
		WithNumMemtables(2).
		WithBaseTableSize(2 << 20).
		WithBlockCacheSize(16 << 20).
		WithIndexCacheSize(8 << 20).
		WithValueLogFileSize(64 << 20)
}
