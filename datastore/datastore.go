/*
Package datastore manages the lifecycle of image/mask datasets on top of the
storage engines: creating a dataset with the fixed five-column schema, opening
it for ingestion, and summarizing its contents and history.
*/
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

const (
	Version = "0.1.0"
)

// Versions returns a chart of version identifiers for this executable.
func Versions() string {
	var b strings.Builder
	b.WriteString("\nCompile-time version information for this lake executable:\n\n")
	writeLine := func(name, version string) {
		fmt.Fprintf(&b, "%-20s   %s\n", name, version)
	}
	writeLine("Name", "Version")
	writeLine("lake datastore", Version)
	for _, name := range storage.EngineNames() {
		e, err := storage.GetEngine(name)
		if err != nil {
			continue
		}
		writeLine(name+" engine", fmt.Sprintf("%s (%s)", e.GetSemVer(), e.GetDescription()))
	}
	return b.String()
}

// CreateConfig describes a dataset to be created.
type CreateConfig struct {
	Path      string
	Name      string // descriptive name used in the schema commit message
	Overwrite bool   // remove anything already at Path first
	Engine    string
	Options   storage.Options
}

// SchemaCommitMessage returns the message of the first commit of a new dataset.
func SchemaCommitMessage(name string) string {
	cols := make([]string, len(lake.DefaultSchema()))
	for i, col := range lake.DefaultSchema() {
		if col.Type == lake.ImagePNGColumn {
			cols[i] = col.Name + " (png)"
		} else {
			cols[i] = col.Name
		}
	}
	return fmt.Sprintf("Schema created for %s: %s.", name, strings.Join(cols, ", "))
}

// Create makes a new empty dataset with the default schema and commits it.
// If something is already at the path, it is removed only when Overwrite is
// set; otherwise storage.ErrDatasetExists is returned.  With Overwrite set, a
// dataset the engine cannot read is removed as well.  Only engines that keep
// datasets on disk look at the filesystem.  The returned dataset is open and
// must be closed by the caller.
func Create(cfg CreateConfig) (storage.Dataset, *storage.Commit, error) {
	engine, err := storage.GetEngine(cfg.Engine)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("no dataset path given")
	}
	name := cfg.Name
	if name == "" {
		name = filepath.Base(cfg.Path)
	}

	onDisk := storage.OnDisk(engine)
	if onDisk {
		parent := filepath.Dir(cfg.Path)
		if !lake.IsDir(parent) {
			lake.Infof("Creating dataset parent directory: %s", parent)
			if err := os.MkdirAll(parent, 0755); err != nil {
				return nil, nil, fmt.Errorf("can't make dataset parent directory %s: %w", parent, err)
			}
		}
	}

	exists, err := engine.Exists(cfg.Path)
	if err != nil {
		if !cfg.Overwrite {
			return nil, nil, fmt.Errorf("checking for dataset at %s: %w", cfg.Path, err)
		}
		lake.Warningf("Unable to read existing dataset at %s, removing it anyway: %v", cfg.Path, err)
		exists = true
	}
	if !exists && onDisk {
		if _, err := os.Stat(cfg.Path); err == nil {
			exists = true
		}
	}
	if exists {
		if !cfg.Overwrite {
			return nil, nil, fmt.Errorf("%w at %s (enable overwrite to replace it)", storage.ErrDatasetExists, cfg.Path)
		}
		lake.Warningf("Overwrite is enabled. Removing existing dataset at %s", cfg.Path)
		if err := engine.Delete(cfg.Path); err != nil {
			return nil, nil, err
		}
		lake.Warningf("Existing dataset at %s removed.", cfg.Path)
	}

	lake.Infof("Creating new empty %s dataset at %s", engine, cfg.Path)
	ds, err := engine.Create(cfg.Path, lake.DefaultSchema(), cfg.Options)
	if err != nil {
		return nil, nil, fmt.Errorf("creating dataset at %s: %w", cfg.Path, err)
	}
	commit, err := ds.Commit(SchemaCommitMessage(name))
	if err != nil {
		ds.Close()
		return nil, nil, fmt.Errorf("committing schema of %s: %w", cfg.Path, err)
	}
	lake.Infof("New %s empty dataset created and schema committed (%s)", name, commit.ID)
	return ds, commit, nil
}

// Open opens the existing dataset at path with the named engine.
func Open(engineName, path string, opts storage.Options) (storage.Dataset, error) {
	engine, err := storage.GetEngine(engineName)
	if err != nil {
		return nil, err
	}
	ds, err := engine.Open(path, opts)
	if err != nil {
		return nil, err
	}
	lake.Debugf("Opened dataset %s with %s engine: %d records", path, engine, ds.Len())
	return ds, nil
}
