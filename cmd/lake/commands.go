package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabbenick/artigo-deeplake/datastore"
	"github.com/gabbenick/artigo-deeplake/export"
	"github.com/gabbenick/artigo-deeplake/ingest"
	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
	"github.com/gabbenick/artigo-deeplake/storage/badger"
)

func (a *app) newCreateCmd() *cobra.Command {
	var (
		overwrite bool
		name      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty dataset with the image/mask schema",
		Long: `Create an empty dataset at the configured path and commit its schema.

An existing dataset is only replaced if overwrite is enabled with --overwrite,
"overwrite = true" in the [dataset] table or LAKE_OVERWRITE=1.  Replacing a
dataset deletes every version of it.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("overwrite") {
				a.cfg.Dataset.Overwrite = overwrite
			}
			if cmd.Flags().Changed("name") {
				a.cfg.Dataset.Name = name
			}
			cfg := a.cfg.Dataset
			lake.Infof("Target dataset path: %s", cfg.Path)
			ds, _, err := datastore.Create(datastore.CreateConfig{
				Path:      cfg.Path,
				Name:      cfg.Name,
				Overwrite: cfg.Overwrite,
				Engine:    cfg.Engine,
				Options:   a.cfg.StoreOptions(),
			})
			if err != nil {
				lake.Errorf("An error occurred during dataset creation: %v", err)
				return err
			}
			defer ds.Close()
			return a.printSummary(cmd, ds)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Remove any existing dataset at the path first")
	cmd.Flags().StringVar(&name, "name", "", "Dataset name used in the schema commit message")
	return cmd
}

func (a *app) newIngestCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Append new image/mask pairs from the source tree",
		Long: `Append image/mask pairs from <source>/{train,test}/{images,masks} to the dataset.

Images whose filename is already in the dataset are skipped.  Pairs that cannot
be read are reported and skipped.  If anything was appended, the run ends with
a single commit.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("source") {
				root, err := lake.ConvertToAbsolute(source, "")
				if err != nil {
					return usageError{err}
				}
				a.cfg.Source.Root = root
			}
			res, err := ingest.Run(ingest.Config{
				DatasetPath: a.cfg.Dataset.Path,
				SourceRoot:  a.cfg.Source.Root,
				Engine:      a.cfg.Dataset.Engine,
				Options:     a.cfg.StoreOptions(),
			})
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Ingestion: %s\n", res)
				for _, fe := range res.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "  failed %s\n", fe.Error())
				}
			}
			if err != nil {
				return err
			}

			ds, err := a.openReadOnly()
			if err != nil {
				return err
			}
			defer ds.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Final dataset summary:")
			return a.printSummary(cmd, ds)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source root (overrides [source] root)")
	return cmd
}

func (a *app) newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the dataset's size, columns and head commit",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.openReadOnly()
			if err != nil {
				return err
			}
			defer ds.Close()
			return a.printSummary(cmd, ds)
		},
	}
}

func (a *app) newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "List the dataset's commits, oldest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.openReadOnly()
			if err != nil {
				return err
			}
			defer ds.Close()
			commits, err := ds.Log()
			if err != nil {
				return err
			}
			for _, c := range commits {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "export <file.arrow>",
		Short: "Write committed records to an Arrow IPC stream file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, err := lake.ConvertToAbsolute(args[0], "")
			if err != nil {
				return usageError{err}
			}
			ds, err := a.openReadOnly()
			if err != nil {
				return err
			}
			defer ds.Close()
			n, err := export.WriteArrowFile(ds, filename, batchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, filename)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", export.DefaultBatchSize, "Records per Arrow record batch")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), datastore.Versions())
		},
	}
}

// openReadOnly opens the configured dataset for reading.
func (a *app) openReadOnly() (storage.Dataset, error) {
	opts := a.cfg.StoreOptions()
	opts[badger.ReadOnlyKey] = true
	return datastore.Open(a.cfg.Dataset.Engine, a.cfg.Dataset.Path, opts)
}

func (a *app) printSummary(cmd *cobra.Command, ds storage.Dataset) error {
	engine, err := storage.GetEngine(a.cfg.Dataset.Engine)
	if err != nil {
		return err
	}
	summary, err := datastore.Summarize(engine, ds)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), summary)
	return nil
}
