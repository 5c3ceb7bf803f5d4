// Package badger implements the default dataset storage engine on BadgerDB.
//
// Each record is stored as one key per column, so reading a single column such
// as original_filename never touches image data.  A head key names the latest
// commit and its record count; cells at or beyond that count belong to an
// uncommitted session and are ignored by readers and discarded on the next Open.
package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

const (
	// DefaultVersionsToKeep is the number of badger versions to keep per key.
	// Dataset versioning is done with commit records, not badger timestamps.
	DefaultVersionsToKeep = 1

	// DefaultSyncWrites is false since Commit explicitly syncs to disk.
	DefaultSyncWrites = false
)

// MarkerFilename is written to the dataset directory once a dataset's metadata
// is durable.  Its presence can be checked while another process holds the
// badger directory lock.
const MarkerFilename = "LAKE_DATASET"

// FormatVersion is the on-disk layout version written to new datasets.  Datasets
// with a different major version cannot be opened.
var FormatVersion = semver.MustParse("1.0.0")

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		lake.Errorf("Unable to make semver in badger: %v\n", err)
	}
	e := Engine{"badger", "BadgerDB with " + MemoryProfile + " memory profile", ver}
	storage.RegisterEngine(e)
}

// --- Engine Implementation ------

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

func (e Engine) OnDisk() bool {
	return true
}

// Exists returns true if a badger dataset created by this engine is at path.
// Only files are inspected so a dataset open elsewhere is still reported.
func (e Engine) Exists(path string) (bool, error) {
	if !isBadgerDir(path) {
		return false, nil
	}
	fi, err := os.Stat(filepath.Join(path, MarkerFilename))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !fi.IsDir(), nil
}

// Create makes a new dataset directory at path with the given schema.
func (e Engine) Create(path string, schema lake.Schema, opts storage.Options) (storage.Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	compress, err := opts.Compression()
	if err != nil {
		return nil, err
	}
	exists, err := e.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w at %s", storage.ErrDatasetExists, path)
	}
	if fi, err := os.Stat(path); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("cannot create dataset: %s is not a directory", path)
		}
		if !isBadgerDir(path) {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			if len(entries) != 0 {
				return nil, fmt.Errorf("cannot create dataset: %s exists and is not empty", path)
			}
		}
	} else {
		lake.Infof("Dataset not already at path (%s). Creating directory...", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("can't make directory at %s: %v", path, err)
		}
	}

	schemaBytes, err := schema.MarshalBinary()
	if err != nil {
		return nil, err
	}
	bdp, err := openDB(path, opts)
	if err != nil {
		return nil, err
	}
	if found, err := metadataExists(bdp); err != nil || found {
		bdp.Close()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w at %s (dataset marker missing)", storage.ErrDatasetExists, path)
	}
	err = bdp.Update(func(txn *badger.Txn) error {
		if err := txn.Set(formatKey, []byte(FormatVersion.String())); err != nil {
			return err
		}
		return txn.Set(schemaKey, schemaBytes)
	})
	if err == nil {
		err = bdp.Sync()
	}
	if err == nil {
		err = os.WriteFile(filepath.Join(path, MarkerFilename), []byte(FormatVersion.String()+"\n"), 0644)
	}
	if err != nil {
		bdp.Close()
		return nil, fmt.Errorf("writing metadata for new dataset at %s: %w", path, err)
	}
	lake.Infof("Created badger dataset @ %s with schema: %s", path, schema)
	return &Dataset{
		path:     path,
		bdp:      bdp,
		schema:   schema,
		compress: compress,
	}, nil
}

// Open opens the dataset at path.
func (e Engine) Open(path string, opts storage.Options) (storage.Dataset, error) {
	compress, err := opts.Compression()
	if err != nil {
		return nil, err
	}
	if !isBadgerDir(path) {
		return nil, fmt.Errorf("%w at %s", storage.ErrDatasetNotFound, path)
	}
	readOnly, _, err := opts.GetBool(ReadOnlyKey)
	if err != nil {
		return nil, err
	}
	bdp, err := openDB(path, opts)
	if err != nil {
		return nil, err
	}
	db := &Dataset{
		path:     path,
		bdp:      bdp,
		compress: compress,
		readOnly: readOnly,
	}
	if err := db.loadMetadata(); err != nil {
		bdp.Close()
		return nil, err
	}
	if !readOnly {
		if err := db.discardUncommitted(); err != nil {
			bdp.Close()
			return nil, err
		}
	}
	lake.Debugf("Opened badger dataset @ %s: %d committed records, %d commits", path, db.head.Rows, db.head.Seq)
	return db, nil
}

// Delete removes the dataset directory and everything in it.
func (e Engine) Delete(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("can't delete dataset %q: %v", path, err)
		}
	}
	return nil
}

func isBadgerDir(path string) bool {
	fi, err := os.Stat(filepath.Join(path, badger.ManifestFilename))
	return err == nil && !fi.IsDir()
}

func openDB(path string, config storage.Options) (*badger.DB, error) {
	opts, err := getOptions(path, config)
	if err != nil {
		return nil, err
	}
	lake.Debugf("Opening badger @ path %s", path)
	return badger.Open(*opts)
}

func metadataExists(bdp *badger.DB) (bool, error) {
	var found bool
	err := bdp.View(func(txn *badger.Txn) error {
		_, err := txn.Get(formatKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// --- The Dataset implementation must satisfy a storage.Dataset interface ----

type Dataset struct {
	path     string
	bdp      *badger.DB
	schema   lake.Schema
	compress lake.Compression
	readOnly bool

	head    storage.Commit // zero value before the first commit
	pending uint64         // records appended since the last commit
}

func (db *Dataset) String() string {
	return fmt.Sprintf("badger @ %s", db.path)
}

func (db *Dataset) Path() string {
	return db.path
}

func (db *Dataset) Schema() lake.Schema {
	return db.schema
}

func (db *Dataset) Len() int {
	return int(db.head.Rows + db.pending)
}

func (db *Dataset) loadMetadata() error {
	return db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(formatKey)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w at %s", storage.ErrDatasetNotFound, db.path)
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ver, err := semver.Parse(string(v))
		if err != nil {
			return fmt.Errorf("%w: bad format version %q: %v", storage.ErrIncompatibleFormat, v, err)
		}
		if ver.Major != FormatVersion.Major {
			return fmt.Errorf("%w: dataset format %s, engine supports %d.x", storage.ErrIncompatibleFormat, ver, FormatVersion.Major)
		}

		if item, err = txn.Get(schemaKey); err != nil {
			return fmt.Errorf("reading schema of %s: %w", db.path, err)
		}
		if v, err = item.ValueCopy(nil); err != nil {
			return err
		}
		if err := db.schema.UnmarshalBinary(v); err != nil {
			return err
		}

		item, err = txn.Get(headKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if v, err = item.ValueCopy(nil); err != nil {
			return err
		}
		_, err = db.head.UnmarshalMsg(v)
		return err
	})
}

// discardUncommitted deletes cells written after the head commit by a session
// that never committed.
func (db *Dataset) discardUncommitted() error {
	var stale [][]byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		it := txn.NewIterator(opts)
		defer it.Close()
		for col := range db.schema {
			prefix := columnPrefix(col)
			for it.Seek(cellKey(col, db.head.Rows)); it.ValidForPrefix(prefix); it.Next() {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}
	wb := db.bdp.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("discarding uncommitted records in %s: %w", db.path, err)
	}
	lake.Warningf("Discarded %d cells of uncommitted records left in %s by an interrupted session", len(stale), db.path)
	return nil
}

func (db *Dataset) check() error {
	if db == nil || db.bdp == nil {
		return storage.ErrClosed
	}
	return nil
}

func (db *Dataset) getCell(txn *badger.Txn, col int, row uint64) ([]byte, error) {
	item, err := txn.Get(cellKey(col, row))
	if err != nil {
		return nil, fmt.Errorf("row %d column %q: %w", row, db.schema[col].Name, err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	data, _, err := lake.DeserializeData(v)
	return data, err
}

// ColumnSet returns the distinct values of a text column.
func (db *Dataset) ColumnSet(column string) (map[string]struct{}, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	col, err := storage.CheckColumn(db.schema, column, lake.TextColumn)
	if err != nil {
		return nil, err
	}
	rows := uint64(db.Len())
	set := make(map[string]struct{}, rows)
	err = db.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := columnPrefix(col)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			row, err := rowFromCellKey(item.Key())
			if err != nil {
				return err
			}
			if row >= rows {
				break
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			data, _, err := lake.DeserializeData(v)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", row, column, err)
			}
			set[string(data)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Append writes all cells of a record in a single transaction.
func (db *Dataset) Append(r *lake.Record) error {
	if err := db.check(); err != nil {
		return err
	}
	if db.readOnly {
		return fmt.Errorf("cannot append to read-only dataset %s", db.path)
	}
	if err := storage.CheckRecord(db.schema, r); err != nil {
		return err
	}
	row := db.head.Rows + db.pending
	cells := make([][]byte, len(db.schema))
	for i, col := range db.schema {
		raw, err := encodeCell(col, r)
		if err != nil {
			return err
		}
		if cells[i], err = lake.SerializeData(raw, db.compress, lake.CRC32); err != nil {
			return err
		}
	}
	err := db.bdp.Update(func(txn *badger.Txn) error {
		for i, v := range cells {
			if err := txn.Set(cellKey(i, row), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending %s as row %d: %w", r.OriginalFilename, row, err)
	}
	db.pending++
	return nil
}

// Commit writes a new head covering all appended records and syncs to disk.
func (db *Dataset) Commit(message string) (*storage.Commit, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	if db.readOnly {
		return nil, fmt.Errorf("cannot commit to read-only dataset %s", db.path)
	}
	c := storage.Commit{
		Seq:     db.head.Seq + 1,
		ID:      lake.NewCommitID(),
		Parent:  db.head.ID,
		Message: message,
		Rows:    db.head.Rows + db.pending,
		Time:    time.Now(),
	}
	v, err := c.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	err = db.bdp.Update(func(txn *badger.Txn) error {
		if err := txn.Set(commitKey(c.Seq), v); err != nil {
			return err
		}
		return txn.Set(headKey, v)
	})
	if err == nil {
		err = db.bdp.Sync()
	}
	if err != nil {
		return nil, fmt.Errorf("committing %s: %w", db.path, err)
	}
	db.head = c
	db.pending = 0
	return &c, nil
}

// Log returns all commits, oldest first.
func (db *Dataset) Log() ([]storage.Commit, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	var commits []storage.Commit
	err := db.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{commitPrefix}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var c storage.Commit
			if _, err := c.UnmarshalMsg(v); err != nil {
				return err
			}
			if c.Seq > db.head.Seq {
				break
			}
			commits = append(commits, c)
		}
		return nil
	})
	return commits, err
}

// Scan reads committed records in row order.
func (db *Dataset) Scan(fn func(*lake.Record) error) error {
	if err := db.check(); err != nil {
		return err
	}
	for row := uint64(0); row < db.head.Rows; row++ {
		r := new(lake.Record)
		err := db.bdp.View(func(txn *badger.Txn) error {
			for col := range db.schema {
				data, err := db.getCell(txn, col, row)
				if err != nil {
					return err
				}
				if err := decodeCell(db.schema[col], data, r); err != nil {
					return fmt.Errorf("row %d column %q: %w", row, db.schema[col].Name, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the disk space used by the files of the dataset directory.
// Badger's own size counters are refreshed periodically and lag recent writes.
func (db *Dataset) Size() (int64, error) {
	if err := db.check(); err != nil {
		return 0, err
	}
	var total int64
	err := filepath.Walk(db.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // removed by compaction during the walk
			}
			return err
		}
		if !info.IsDir() {
			total += diskUsage(info)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", db.path, err)
	}
	return total, nil
}

// Close closes the underlying database.  Uncommitted records are lost.
func (db *Dataset) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	if db.pending > 0 {
		lake.Warningf("Closing %s with %d uncommitted records; they will be discarded on next open", db.path, db.pending)
	}
	err := db.bdp.Close()
	db.bdp = nil
	if err != nil {
		return err
	}
	lake.Debugf("Closed badger dataset @ %s", db.path)
	return nil
}
