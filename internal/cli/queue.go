package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"storeops/internal/app"
	"storeops/internal/models"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drain the background deletion queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count queued deletion jobs by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(rootOpts, cmd, func(a *app.App) error {
				stats, err := a.Queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(stats, func(w io.Writer) {
					for _, status := range []string{
						models.JobStatusPending,
						models.JobStatusProcessing,
						models.JobStatusFailed,
						models.JobStatusPermanentFail,
						models.JobStatusDone,
					} {
						fmt.Fprintf(w, "%-15s %d\n", status, stats[status])
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Process every due deletion job now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(rootOpts, cmd, func(a *app.App) error {
				n := a.Worker.Drain(cmd.Context(), 0)
				return rootOpts.formatter(cmd).Success(map[string]int{"processed": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Processed %d job(s)\n", n)
				})
			})
		},
	})

	return cmd
}

func withQueue(rootOpts *RootOptions, cmd *cobra.Command, fn func(a *app.App) error) error {
	f := rootOpts.formatter(cmd)

	a, err := rootOpts.open(cmd.Context())
	if err != nil {
		_ = f.Error("config", err.Error())
		return err
	}
	defer a.Close()

	if a.Queue == nil {
		_ = f.Error("unsupported", "the deletion queue needs a GORM database")
		return NewExitError(ExitCommandError, "deletion queue unavailable")
	}
	if err := fn(a); err != nil {
		_ = f.Error("error", err.Error())
		return WrapExitError(ExitFailure, "queue command failed", err)
	}
	return nil
}
