package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"meshvault/internal/config"
)

type globalOptions struct {
	json     bool
	yaml     bool
	logLevel string
	index    string
	blobDir  string
	backend  string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "meshvault",
		Short:         "Meshvault stores mesh and texture blobs in growable flat files behind a transactional index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyGlobalOptions(cfg, &opts)
		},
	}

	cmd.Version = version
	flags := cmd.PersistentFlags()
	flags.BoolVar(&opts.json, "json", false, "output JSON")
	flags.BoolVar(&opts.yaml, "yaml", false, "output YAML")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.index, "index", "", "index path (overrides index_path and MESHVAULT_INDEX)")
	flags.StringVar(&opts.blobDir, "blob-dir", "", "blob file directory (defaults to the index directory)")
	flags.StringVar(&opts.backend, "backend", "", "index backend: sqlite or leveldb")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	cmd.AddCommand(
		newStoreCmd(cfg),
		newLookupCmd(cfg),
		newCatCmd(cfg),
		newInfoCmd(cfg),
		newBenchCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}

func applyGlobalOptions(cfg *config.Config, opts *globalOptions) error {
	warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Fprintln(os.Stderr, warning)
	}

	if v := strings.TrimSpace(opts.index); v != "" {
		cfg.IndexPath = v
	}
	if v := strings.TrimSpace(opts.blobDir); v != "" {
		cfg.BlobDir = v
	}
	if v := strings.TrimSpace(opts.backend); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	selectOutputFormat(opts.json, opts.yaml)
	return nil
}
