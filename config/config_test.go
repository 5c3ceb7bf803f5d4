package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabbenick/artigo-deeplake/storage"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{EnvDatasetPath, EnvDatasetName, EnvEngine, EnvOverwrite,
		EnvCompression, EnvSourceRoot, EnvLogfile, EnvVerbose} {
		t.Setenv(name, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, DefaultDatasetPath), c.Dataset.Path)
	assert.Equal(t, filepath.Join(cwd, DefaultSourceRoot), c.Source.Root)
	assert.Equal(t, DefaultDatasetName, c.Dataset.Name)
	assert.Equal(t, storage.DefaultEngine, c.Dataset.Engine)
	assert.False(t, c.Dataset.Overwrite)
	assert.Equal(t, "none", c.Dataset.Compression)
	assert.Empty(t, c.Location())
}

const testConfig = `
[dataset]
path = "data/shdataset"
name = "SHdataset_test"
overwrite = true
compression = "snappy"

[source]
root = "/srv/source"

[logging]
logfile = "logs/lake.log"
max_log_size = 10
max_log_age = 3

[store]
sync_writes = true
value_threshold = 4096
`

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	filename := filepath.Join(dir, "lake.toml")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0644))
	return filename
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	filename := writeConfig(t, testConfig)
	dir := filepath.Dir(filename)

	c, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, filename, c.Location())
	assert.Equal(t, filepath.Join(dir, "data/shdataset"), c.Dataset.Path)
	assert.Equal(t, "SHdataset_test", c.Dataset.Name)
	assert.True(t, c.Dataset.Overwrite)
	assert.Equal(t, "/srv/source", c.Source.Root)
	assert.Equal(t, filepath.Join(dir, "logs/lake.log"), c.Logging.Logfile)
	assert.Equal(t, 10, c.Logging.MaxSize)
	assert.Equal(t, 3, c.Logging.MaxAge)

	opts := c.StoreOptions()
	assert.Equal(t, "snappy", opts[storage.CompressionKey])
	sync, found, err := opts.GetBool("sync_writes")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, sync)
	n, _, err := opts.GetInt("value_threshold")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), n)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	filename := writeConfig(t, testConfig)
	t.Setenv(EnvDatasetPath, "/data/other")
	t.Setenv(EnvEngine, "memory")
	t.Setenv(EnvOverwrite, "false")
	t.Setenv(EnvCompression, "zstd")
	t.Setenv(EnvVerbose, "1")

	c, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, "/data/other", c.Dataset.Path)
	assert.Equal(t, "memory", c.Dataset.Engine)
	assert.False(t, c.Dataset.Overwrite)
	assert.Equal(t, "zstd", c.Dataset.Compression)
	assert.True(t, c.Logging.Verbose)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name     string
		contents string
		env      map[string]string
	}{
		{"bad toml", "[dataset\npath = ", nil},
		{"bad compression", "[dataset]\ncompression = \"lz4\"\n", nil},
		{"bad overwrite env", "", map[string]string{EnvOverwrite: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvDatasetName)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvDatasetName+"=from_dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv(EnvDatasetName) })

	LoadDotEnv(envFile, filepath.Join(t.TempDir(), "absent.env"))
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", c.Dataset.Name)
}
