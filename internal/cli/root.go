// Package cli implements storectl, the operator command line for store deletions.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storeops/internal/app"
	"storeops/internal/config"
	"storeops/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for storectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storectl",
		Short: "storectl - store deletion tooling",
		Long: `Preview and run store deletions against the configured database and object storage.

Every deletion removes the store's dependent rows and stored files, then
soft-deletes the store itself. Use "plan" to see what would be affected.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config/storeops.yaml", "config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// open loads the config and wires the deletion stack. Logs go to stderr
// only with --verbose.
func (o *RootOptions) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	log := zap.NewNop()
	if o.Verbose {
		if log, err = logger.New("debug", "development", "storectl"); err != nil {
			return nil, err
		}
	}

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	return a, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
