/*
Package config loads the settings shared by the lake commands.

Settings come from, in increasing priority: built-in defaults, an optional TOML
file, a .env file and the process environment, and finally command-line flags
applied by the caller.  A TOML file looks like:

	[dataset]
	path = "dl_datasets/shdataset_12k"
	name = "SHdataset_12k"
	engine = "badger"
	overwrite = false
	compression = "none"

	[source]
	root = "db/SHdataset_12k"

	[logging]
	logfile = "logs/lake.log"
	max_log_size = 500 # MB
	max_log_age = 30   # days

	[store]
	sync_writes = false
	value_threshold = 1048576

Relative paths given in the file are relative to the file's own directory.
Paths from defaults, the environment or flags are relative to the working
directory.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

const (
	DefaultDatasetPath = "dl_datasets/shdataset_12k"
	DefaultDatasetName = "SHdataset_12k"
	DefaultSourceRoot  = "db/SHdataset_12k"
	DefaultCompression = "none"
)

// Environment variables that override the TOML configuration.
const (
	EnvDatasetPath = "LAKE_DATASET_PATH"
	EnvDatasetName = "LAKE_DATASET_NAME"
	EnvEngine      = "LAKE_ENGINE"
	EnvOverwrite   = "LAKE_OVERWRITE"
	EnvCompression = "LAKE_COMPRESSION"
	EnvSourceRoot  = "LAKE_SOURCE_ROOT"
	EnvLogfile     = "LAKE_LOGFILE"
	EnvVerbose     = "LAKE_VERBOSE"
)

// DatasetConfig is the [dataset] table.
type DatasetConfig struct {
	Path        string
	Name        string
	Engine      string
	Overwrite   bool
	Compression string
}

// SourceConfig is the [source] table.
type SourceConfig struct {
	Root string
}

// Config holds every setting of a lake command.
type Config struct {
	Dataset DatasetConfig
	Source  SourceConfig
	Logging lake.LogConfig
	Store   storage.Options

	location string
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:        DefaultDatasetPath,
			Name:        DefaultDatasetName,
			Engine:      storage.DefaultEngine,
			Compression: DefaultCompression,
		},
		Source: SourceConfig{
			Root: DefaultSourceRoot,
		},
		Store: storage.Options{},
	}
}

// Load returns the defaults overlaid with the TOML file at filename, if any,
// and then with the environment.  Relative paths are made absolute.
func Load(filename string) (*Config, error) {
	c := Default()
	if filename != "" {
		if err := c.decodeFile(filename); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) decodeFile(filename string) error {
	md, err := toml.DecodeFile(filename, c)
	if err != nil {
		return fmt.Errorf("could not decode TOML config %s: %w", filename, err)
	}
	for _, key := range md.Undecoded() {
		lake.Warningf("Ignoring unknown setting %q in %s", key.String(), filename)
	}
	c.location = filename
	if c.Store == nil {
		c.Store = storage.Options{}
	}

	configDir := filepath.Dir(filename)
	if md.IsDefined("dataset", "path") {
		if c.Dataset.Path, err = lake.ConvertToAbsolute(c.Dataset.Path, configDir); err != nil {
			return fmt.Errorf("error converting dataset path to absolute path: %w", err)
		}
	}
	if md.IsDefined("source", "root") {
		if c.Source.Root, err = lake.ConvertToAbsolute(c.Source.Root, configDir); err != nil {
			return fmt.Errorf("error converting source root to absolute path: %w", err)
		}
	}
	if c.Logging.Logfile != "" {
		if c.Logging.Logfile, err = lake.ConvertToAbsolute(c.Logging.Logfile, configDir); err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path: %w", err)
		}
	}
	return nil
}

// LoadDotEnv reads environment variables from the given .env files, or from
// ".env" in the working directory if none are given.  Variables already set in
// the environment are not changed, and missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			lake.Warningf("Could not load environment file %s: %v", f, err)
		}
	}
}

// ApplyEnv overrides settings with any LAKE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvDatasetPath); ok && v != "" {
		c.Dataset.Path = v
	}
	if v, ok := os.LookupEnv(EnvDatasetName); ok && v != "" {
		c.Dataset.Name = v
	}
	if v, ok := os.LookupEnv(EnvEngine); ok && v != "" {
		c.Dataset.Engine = v
	}
	if v, ok := os.LookupEnv(EnvCompression); ok && v != "" {
		c.Dataset.Compression = v
	}
	if v, ok := os.LookupEnv(EnvSourceRoot); ok && v != "" {
		c.Source.Root = v
	}
	if v, ok := os.LookupEnv(EnvLogfile); ok && v != "" {
		c.Logging.Logfile = v
	}
	var err error
	if c.Dataset.Overwrite, err = envBool(EnvOverwrite, c.Dataset.Overwrite); err != nil {
		return err
	}
	if c.Logging.Verbose, err = envBool(EnvVerbose, c.Logging.Verbose); err != nil {
		return err
	}
	return nil
}

func envBool(name string, current bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return current, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return current, fmt.Errorf("environment variable %s=%q is not a boolean", name, v)
	}
	return b, nil
}

// Resolve makes the dataset, source and log paths absolute against the working
// directory and validates the remaining settings.
func (c *Config) Resolve() error {
	var err error
	if c.Dataset.Path == "" {
		return fmt.Errorf("no dataset path configured")
	}
	if c.Dataset.Path, err = lake.ConvertToAbsolute(c.Dataset.Path, ""); err != nil {
		return err
	}
	if c.Source.Root != "" {
		if c.Source.Root, err = lake.ConvertToAbsolute(c.Source.Root, ""); err != nil {
			return err
		}
	}
	if c.Logging.Logfile != "" {
		if c.Logging.Logfile, err = lake.ConvertToAbsolute(c.Logging.Logfile, ""); err != nil {
			return err
		}
	}
	if c.Dataset.Name == "" {
		c.Dataset.Name = filepath.Base(c.Dataset.Path)
	}
	if _, err := lake.ParseCompression(c.Dataset.Compression); err != nil {
		return err
	}
	return nil
}

// Location returns the TOML file the configuration was read from, if any.
func (c *Config) Location() string {
	return c.location
}

// StoreOptions returns the engine options: the [store] table plus the dataset
// compression.
func (c *Config) StoreOptions() storage.Options {
	opts := make(storage.Options, len(c.Store)+1)
	for k, v := range c.Store {
		opts[k] = v
	}
	opts[storage.CompressionKey] = c.Dataset.Compression
	return opts
}

func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dataset %q @ %s (engine %s, compression %s, overwrite %t)",
		c.Dataset.Name, c.Dataset.Path, c.Dataset.Engine, c.Dataset.Compression, c.Dataset.Overwrite)
	if c.Source.Root != "" {
		fmt.Fprintf(&b, ", source %s", c.Source.Root)
	}
	if c.location != "" {
		fmt.Fprintf(&b, ", config %s", c.location)
	}
	return b.String()
}
