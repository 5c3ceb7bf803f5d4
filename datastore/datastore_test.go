package datastore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/lake/laketest"
	"github.com/gabbenick/artigo-deeplake/storage"
	"github.com/gabbenick/artigo-deeplake/storage/badger"
	"github.com/gabbenick/artigo-deeplake/storage/memory"
)

var errUnreadable = errors.New("unreadable dataset")

// unreadableEngine is a memory engine that cannot inspect existing datasets.
type unreadableEngine struct {
	storage.Engine
}

func (e unreadableEngine) GetName() string {
	return "unreadable"
}

func (e unreadableEngine) Exists(path string) (bool, error) {
	return false, errUnreadable
}

func init() {
	e, err := storage.GetEngine("memory")
	if err != nil {
		panic(err)
	}
	storage.RegisterEngine(unreadableEngine{e})
}

func TestSchemaCommitMessage(t *testing.T) {
	assert.Equal(t,
		"Schema created for SHdataset_12k: ids, images (png), masks (png), split, original_filename.",
		SchemaCommitMessage("SHdataset_12k"))
}

func TestCreate(t *testing.T) {
	for _, engine := range []string{"badger", "memory"} {
		t.Run(engine, func(t *testing.T) {
			memory.Reset()
			path := filepath.Join(t.TempDir(), "dl_datasets", "shdataset_12k")
			ds, commit, err := Create(CreateConfig{Path: path, Name: "SHdataset_12k", Engine: engine})
			require.NoError(t, err)
			defer ds.Close()

			assert.Equal(t, 0, ds.Len())
			assert.True(t, ds.Schema().Equal(lake.DefaultSchema()))
			assert.Equal(t, SchemaCommitMessage("SHdataset_12k"), commit.Message)
			assert.Equal(t, uint64(1), commit.Seq)
			assert.Equal(t, engine == "badger", lake.IsDir(filepath.Dir(path)),
				"only on-disk engines make the parent directory")

			log, err := ds.Log()
			require.NoError(t, err)
			require.Len(t, log, 1)
			assert.Equal(t, commit.ID, log[0].ID)
		})
	}
}

func TestCreateOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds")
	cfg := CreateConfig{Path: path, Engine: "badger"}

	ds, _, err := Create(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Append(laketest.Record(t, 0, lake.Train, "a.png")))
	_, err = ds.Commit("one record")
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	_, _, err = Create(cfg)
	assert.ErrorIs(t, err, storage.ErrDatasetExists)

	ds, err = Open("badger", path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len(), "refused create must leave the dataset intact")
	require.NoError(t, ds.Close())

	cfg.Overwrite = true
	ds, commit, err := Create(cfg)
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, uint64(1), commit.Seq)
	assert.Equal(t, SchemaCommitMessage("ds"), commit.Message)
}

func TestCreateOverwriteNonDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds")
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "stale.txt"), []byte("x"), 0644))

	_, _, err := Create(CreateConfig{Path: path, Engine: "badger"})
	assert.ErrorIs(t, err, storage.ErrDatasetExists)

	ds, _, err := Create(CreateConfig{Path: path, Engine: "badger", Overwrite: true})
	require.NoError(t, err)
	defer ds.Close()
	_, err = os.Stat(filepath.Join(path, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateOverwriteCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds")
	cfg := CreateConfig{Path: path, Engine: "badger"}
	ds, _, err := Create(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	require.NoError(t, os.WriteFile(filepath.Join(path, "MANIFEST"), []byte("garbage"), 0644))

	_, _, err = Create(cfg)
	assert.ErrorIs(t, err, storage.ErrDatasetExists)

	cfg.Overwrite = true
	ds, commit, err := Create(cfg)
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, uint64(1), commit.Seq)
}

func TestCreateOverwriteUnreadable(t *testing.T) {
	memory.Reset()
	cfg := CreateConfig{Path: "broken", Engine: "unreadable"}
	_, _, err := Create(cfg)
	assert.ErrorIs(t, err, errUnreadable)

	cfg.Overwrite = true
	ds, _, err := Create(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
}

func TestCreateMemoryIgnoresFilesystem(t *testing.T) {
	memory.Reset()
	dir := t.TempDir()

	// A badger dataset at the path does not block a memory dataset of the same name.
	path := filepath.Join(dir, "ds")
	ds, _, err := Create(CreateConfig{Path: path, Engine: "badger"})
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ds, _, err = Create(CreateConfig{Path: path, Engine: "memory"})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	_, err = os.Stat(filepath.Join(path, badger.MarkerFilename))
	assert.NoError(t, err, "the badger dataset is left alone")

	nested := filepath.Join(dir, "missing", "ds")
	ds, _, err = Create(CreateConfig{Path: nested, Engine: "memory"})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	assert.False(t, lake.IsDir(filepath.Dir(nested)))
}

func TestCreateErrors(t *testing.T) {
	_, _, err := Create(CreateConfig{Path: filepath.Join(t.TempDir(), "ds"), Engine: "nope"})
	assert.Error(t, err)
	_, _, err = Create(CreateConfig{Engine: "memory"})
	assert.Error(t, err)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open("badger", filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, storage.ErrDatasetNotFound)
}

func TestSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds")
	ds, _, err := Create(CreateConfig{Path: path, Name: "demo", Engine: "badger"})
	require.NoError(t, err)
	defer ds.Close()
	require.NoError(t, ds.Append(laketest.Record(t, 0, lake.Test, "z.png")))
	_, err = ds.Commit("added z")
	require.NoError(t, err)

	engine, err := storage.GetEngine("badger")
	require.NoError(t, err)
	s, err := Summarize(engine, ds)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Records)
	assert.Equal(t, 2, s.Commits)
	require.NotNil(t, s.Head)
	assert.Equal(t, "added z", s.Head.Message)
	assert.Greater(t, s.Size, int64(0))

	out := s.String()
	assert.Contains(t, out, "records=1")
	assert.Contains(t, out, "original_filename")
	assert.Contains(t, out, "image(png)")
	assert.Contains(t, out, "binary")
	assert.Contains(t, out, "added z")
}

func TestVersions(t *testing.T) {
	v := Versions()
	assert.Contains(t, v, "lake datastore")
	assert.Contains(t, v, "badger engine")
	assert.Contains(t, v, "memory engine")
	assert.Contains(t, v, "unreadable engine")
}
