/*
Package storage provides a unified interface to the dataset storage engines.

Each engine registers itself on import, much like database/sql drivers:

	import _ "github.com/gabbenick/artigo-deeplake/storage/badger"

and is then retrieved by name with GetEngine.  An engine creates and opens
datasets; a Dataset is a session on one dataset.  Records appended during a
session become durable only when Commit succeeds.  Appended but uncommitted
records are not visible to a later Open.
*/
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/blang/semver"
	"github.com/gabbenick/artigo-deeplake/lake"
)

// DefaultEngine is the name of the engine used when none is configured.
const DefaultEngine = "badger"

var (
	// ErrDatasetNotFound is returned when opening a path with no dataset.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetExists is returned when creating a dataset where one already exists.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrUnknownColumn is returned when a column name is not in the schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrColumnType is returned when a column cannot be read the requested way.
	ErrColumnType = errors.New("column type mismatch")

	// ErrIncompatibleFormat is returned when a dataset was written by an
	// incompatible version of an engine.
	ErrIncompatibleFormat = errors.New("incompatible dataset format")

	// ErrClosed is returned for operations on a closed dataset.
	ErrClosed = errors.New("dataset is closed")
)

// Engine creates, opens and deletes datasets of one storage implementation.
type Engine interface {
	fmt.Stringer

	GetName() string
	GetDescription() string
	GetSemVer() semver.Version

	// Exists returns true if a dataset is present at path.
	Exists(path string) (bool, error)

	// Create makes a new empty dataset with the given schema.  It returns
	// ErrDatasetExists if a dataset is already at path.
	Create(path string, schema lake.Schema, opts Options) (Dataset, error)

	// Open opens an existing dataset, returning ErrDatasetNotFound if none exists.
	Open(path string, opts Options) (Dataset, error)

	// Delete irreversibly removes the dataset at path and all its versions.
	Delete(path string) error
}

// Dataset is a session on a single dataset.
type Dataset interface {
	// Path returns the location of the dataset.
	Path() string

	// Schema returns the dataset's columns.
	Schema() lake.Schema

	// Len returns the number of records, including records appended in this
	// session that are not yet committed.
	Len() int

	// ColumnSet returns the distinct values of a text column over all records.
	ColumnSet(column string) (map[string]struct{}, error)

	// Append adds a record.  It is not durable until Commit.
	Append(r *lake.Record) error

	// Commit makes all appended records durable as a new version.
	Commit(message string) (*Commit, error)

	// Log returns all commits, oldest first.
	Log() ([]Commit, error)

	// Scan calls fn for each committed record in id order until fn returns an error.
	Scan(fn func(*lake.Record) error) error

	Close() error
}

// DiskEngine is implemented by engines that keep each dataset in its own
// directory on the local filesystem.
type DiskEngine interface {
	Engine
	OnDisk() bool
}

// OnDisk returns true if the datasets of e are directories on the local
// filesystem.  Dataset paths of other engines are only names.
func OnDisk(e Engine) bool {
	de, ok := e.(DiskEngine)
	return ok && de.OnDisk()
}

// Sizer is implemented by datasets that can report their storage footprint in bytes.
type Sizer interface {
	Size() (int64, error)
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// RegisterEngine makes an engine available by name.  It panics if an engine
// with the same name is already registered.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	name := e.GetName()
	if _, dup := engines[name]; dup {
		panic(fmt.Sprintf("storage: engine %q registered twice", name))
	}
	engines[name] = e
}

// GetEngine returns the registered engine with the given name.
func GetEngine(name string) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, found := engines[name]
	if !found {
		return nil, fmt.Errorf("no storage engine %q is available (have %v)", name, engineNames())
	}
	return e, nil
}

// EngineNames returns the names of all registered engines, sorted.
func EngineNames() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	return engineNames()
}

func engineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckColumn returns the index of a column in schema that must have the given type.
func CheckColumn(schema lake.Schema, column string, want lake.ColumnType) (int, error) {
	idx := schema.Index(column)
	if idx < 0 {
		return -1, fmt.Errorf("%w %q", ErrUnknownColumn, column)
	}
	if got := schema[idx].Type; got != want {
		return -1, fmt.Errorf("%w: column %q is %s, not %s", ErrColumnType, column, got, want)
	}
	return idx, nil
}

// CheckRecord verifies a record can be stored in a dataset with the given schema.
// Engines store records by column name, so the schema must hold the five
// record columns with their expected types.
func CheckRecord(schema lake.Schema, r *lake.Record) error {
	if !schema.Equal(lake.DefaultSchema()) {
		return fmt.Errorf("cannot store record in dataset with schema %s", schema)
	}
	return r.Validate()
}
