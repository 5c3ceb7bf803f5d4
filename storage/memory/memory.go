// Package memory implements a process-local dataset engine.  Datasets are kept
// in a registry keyed by path so they survive Close and Open within one process,
// which makes the engine useful for tests and dry runs.  Like the on-disk
// engines, only committed records are visible to a later Open.
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/blang/semver"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

func init() {
	storage.RegisterEngine(Engine{"memory", "In-process memory store", semver.MustParse("0.1.0")})
}

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// stored is the committed state of one dataset.
type stored struct {
	schema  lake.Schema
	records []*lake.Record
	commits []storage.Commit
}

var (
	mu       sync.Mutex
	datasets = make(map[string]*stored)
)

// Reset removes every memory dataset.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	datasets = make(map[string]*stored)
}

func (e Engine) Exists(path string) (bool, error) {
	mu.Lock()
	defer mu.Unlock()
	_, found := datasets[path]
	return found, nil
}

func (e Engine) Create(path string, schema lake.Schema, opts storage.Options) (storage.Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if _, found := datasets[path]; found {
		return nil, fmt.Errorf("%w at %s", storage.ErrDatasetExists, path)
	}
	st := &stored{schema: schema}
	datasets[path] = st
	return &Dataset{path: path, st: st}, nil
}

func (e Engine) Open(path string, opts storage.Options) (storage.Dataset, error) {
	mu.Lock()
	defer mu.Unlock()
	st, found := datasets[path]
	if !found {
		return nil, fmt.Errorf("%w at %s", storage.ErrDatasetNotFound, path)
	}
	return &Dataset{path: path, st: st}, nil
}

func (e Engine) Delete(path string) error {
	mu.Lock()
	defer mu.Unlock()
	delete(datasets, path)
	return nil
}

// Dataset is a session on a memory dataset.  Appended records are held in the
// session until Commit.
type Dataset struct {
	path    string
	st      *stored
	pending []*lake.Record
	closed  bool
}

func (db *Dataset) Path() string {
	return db.path
}

func (db *Dataset) Schema() lake.Schema {
	return db.st.schema
}

func (db *Dataset) Len() int {
	mu.Lock()
	defer mu.Unlock()
	return len(db.st.records) + len(db.pending)
}

func (db *Dataset) ColumnSet(column string) (map[string]struct{}, error) {
	if db.closed {
		return nil, storage.ErrClosed
	}
	if _, err := storage.CheckColumn(db.st.schema, column, lake.TextColumn); err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	set := make(map[string]struct{}, len(db.st.records)+len(db.pending))
	for _, records := range [][]*lake.Record{db.st.records, db.pending} {
		for _, r := range records {
			switch column {
			case lake.ColumnSplit:
				set[string(r.Split)] = struct{}{}
			case lake.ColumnOriginalFilename:
				set[r.OriginalFilename] = struct{}{}
			}
		}
	}
	return set, nil
}

func (db *Dataset) Append(r *lake.Record) error {
	if db.closed {
		return storage.ErrClosed
	}
	if err := storage.CheckRecord(db.st.schema, r); err != nil {
		return err
	}
	cp := *r
	db.pending = append(db.pending, &cp)
	return nil
}

func (db *Dataset) Commit(message string) (*storage.Commit, error) {
	if db.closed {
		return nil, storage.ErrClosed
	}
	mu.Lock()
	defer mu.Unlock()
	var parent storage.Commit
	if n := len(db.st.commits); n > 0 {
		parent = db.st.commits[n-1]
	}
	db.st.records = append(db.st.records, db.pending...)
	db.pending = nil
	c := storage.Commit{
		Seq:     parent.Seq + 1,
		ID:      lake.NewCommitID(),
		Parent:  parent.ID,
		Message: message,
		Rows:    uint64(len(db.st.records)),
		Time:    time.Now(),
	}
	db.st.commits = append(db.st.commits, c)
	return &c, nil
}

func (db *Dataset) Log() ([]storage.Commit, error) {
	if db.closed {
		return nil, storage.ErrClosed
	}
	mu.Lock()
	defer mu.Unlock()
	return append([]storage.Commit(nil), db.st.commits...), nil
}

func (db *Dataset) Scan(fn func(*lake.Record) error) error {
	if db.closed {
		return storage.ErrClosed
	}
	mu.Lock()
	records := append([]*lake.Record(nil), db.st.records...)
	mu.Unlock()
	for _, r := range records {
		cp := *r
		if err := fn(&cp); err != nil {
			return err
		}
	}
	return nil
}

func (db *Dataset) Close() error {
	if len(db.pending) > 0 {
		lake.Warningf("Closing memory dataset %s with %d uncommitted records; they are discarded", db.path, len(db.pending))
	}
	db.pending = nil
	db.closed = true
	return nil
}
