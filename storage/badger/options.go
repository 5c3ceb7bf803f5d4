package badger

import (
	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

// Engine settings recognized in the [store] table.
const (
	ReadOnlyKey         = "read_only"
	SyncWritesKey       = "sync_writes"
	ValueThresholdKey   = "value_threshold"
	ValueLogFileSizeKey = "value_log_file_size"
)

func getOptions(path string, config storage.Options) (*badger.Options, error) {
	opts := baseOptions(path).
		WithLogger(lake.LibraryLogger("badger")).
		WithNumVersionsToKeep(DefaultVersionsToKeep).
		WithSyncWrites(DefaultSyncWrites).
		// Cells are PNG data or already compressed by the serialization envelope.
		WithCompression(options.None)

	readOnly, found, err := config.GetBool(ReadOnlyKey)
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithReadOnly(readOnly)
	}

	syncWrites, found, err := config.GetBool(SyncWritesKey)
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithSyncWrites(syncWrites)
	}

	valueSizeThresh, found, err := config.GetInt(ValueThresholdKey)
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithValueThreshold(valueSizeThresh)
	}

	vlogSize, found, err := config.GetInt(ValueLogFileSizeKey)
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithValueLogFileSize(vlogSize)
	}

	return &opts, nil
}
