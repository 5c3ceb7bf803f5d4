// Command-line tool that creates image/mask datasets and ingests PNG pairs into them.

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/gabbenick/artigo-deeplake/config"
	"github.com/gabbenick/artigo-deeplake/lake"

	// Storage engines available to the commands.
	_ "github.com/gabbenick/artigo-deeplake/storage/badger"
	_ "github.com/gabbenick/artigo-deeplake/storage/memory"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1 // setup, storage or commit failure
	ExitUsage   = 2 // bad arguments, flags or configuration
)

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func (e usageError) Unwrap() error {
	return e.err
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ue usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitFailure
}

// usageArgs wraps a cobra argument validator so its errors map to ExitUsage.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// app holds the global flags and the configuration they produce.
type app struct {
	configFile  string
	verbose     bool
	datasetPath string
	engine      string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "lake",
		Short: "Build versioned image/mask datasets from PNG source trees",
		Long: `lake creates a versioned dataset with five columns (ids, images, masks, split,
original_filename) and ingests image/mask PNG pairs from a source tree laid out as

    <source>/train/images/*.png   <source>/train/masks/*.png
    <source>/test/images/*.png    <source>/test/masks/*.png

Settings come from an optional TOML file (--config), a .env file, LAKE_*
environment variables and flags, in increasing priority.

Exit Codes:
  0  - Success
  1  - Operation failed (missing dataset or source, storage or commit failure)
  2  - Usage or configuration error`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "TOML configuration file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&a.datasetPath, "dataset", "", "Dataset path (overrides [dataset] path)")
	flags.StringVar(&a.engine, "engine", "", "Storage engine (overrides [dataset] engine)")

	root.AddCommand(
		a.newCreateCmd(),
		a.newIngestCmd(),
		a.newSummaryCmd(),
		a.newLogCmd(),
		a.newExportCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig builds the configuration from file, environment and flags, then
// sets up logging.
func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return usageError{err}
	}
	if cmd.Flags().Changed("dataset") {
		if cfg.Dataset.Path, err = lake.ConvertToAbsolute(a.datasetPath, ""); err != nil {
			return usageError{err}
		}
	}
	if cmd.Flags().Changed("engine") {
		cfg.Dataset.Engine = a.engine
	}
	if a.verbose {
		cfg.Logging.Verbose = true
	}
	cfg.Logging.SetLogger()
	lake.Debugf("Configuration: %s", cfg)
	a.cfg = cfg
	return nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			lake.Shutdown()
			os.Exit(ExitFailure)
		}
	}()

	err := newRootCmd().Execute()
	lake.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
