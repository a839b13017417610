// Package cli implements labctl, the command-line companion of the lab
// service: formula checks, template linting, offline test runs and
// database migrations.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"cmt-backend/internal/config"
	"cmt-backend/internal/testdef"
)

type options struct {
	configPath     string
	definitionsDir string
	verbose        bool
}

// NewRootCmd creates the labctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "labctl",
		Short:        "Tools for the materials testing backend",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.Path(), "path to the service config file")
	root.PersistentFlags().StringVar(&opts.definitionsDir, "definitions", "", "directory with test definitions (built-in set when empty)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log skipped calculations")

	root.AddCommand(
		newCalcCmd(opts),
		newCheckTemplateCmd(),
		newDefinitionsCmd(opts),
		newRunCmd(opts),
		newMigrateCmd(opts),
	)

	return root
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) catalog() (*testdef.Catalog, error) {
	if o.definitionsDir == "" {
		return testdef.Builtin()
	}
	return testdef.Load(os.DirFS(o.definitionsDir))
}
