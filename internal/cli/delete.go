package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storeops/internal/cascade"
	"storeops/internal/cleanup"
	"storeops/internal/models"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <store-id>",
		Short: "Show what deleting a store would remove",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0], deleteOptions{dryRun: true})
		},
	}
}

type deleteOptions struct {
	dryRun bool
	yes    bool
	reason string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <store-id>",
		Short: "Delete a store with its rows and files",
		Long: `Delete a store: remove its stored files, delete every dependent row,
then soft-delete the store. Requires --yes unless --dry-run is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "only show the plan")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "confirm the deletion")
	cmd.Flags().StringVar(&opts.reason, "reason", models.DeletionReasonCLI, "reason recorded in the deletion log")

	return cmd
}

func runDelete(rootOpts *RootOptions, cmd *cobra.Command, storeID string, opts deleteOptions) error {
	f := rootOpts.formatter(cmd)

	if !opts.dryRun && !opts.yes {
		_ = f.Error("invalid", "refusing to delete without --yes (use --dry-run to preview)")
		return NewExitError(ExitCommandError, "confirmation required")
	}

	a, err := rootOpts.open(cmd.Context())
	if err != nil {
		_ = f.Error("config", err.Error())
		return err
	}
	defer a.Close()

	f.VerboseLog("Deleting store %s (dry run: %t)", storeID, opts.dryRun)
	result, err := a.Service.DeleteStore(cmd.Context(), cleanup.Request{
		StoreID:     storeID,
		DryRun:      opts.dryRun,
		RequestedBy: "storectl",
		Reason:      opts.reason,
	})
	if err != nil {
		_ = f.Error(cleanup.Outcome(err), err.Error())
		return WrapExitError(ExitFailure, "store deletion failed", err)
	}

	return f.Success(result, func(w io.Writer) {
		if result.Plan != nil {
			renderPlan(w, result.Plan)
		}
		if result.Summary != nil {
			renderSummary(w, storeID, result.Summary)
		}
	})
}

func renderPlan(w io.Writer, plan *cascade.Plan) {
	name := plan.StoreName
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(w, "Store %s (%s)\n\n", plan.StoreID, name)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCOLUMN\tROWS\tSAMPLE")
	for _, t := range plan.Tables {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%v\n", t.Table, t.Column, t.Count, t.SampleIDs)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d rows, %d stored files\n", plan.TotalRows(), len(plan.Storage))
	for _, bucket := range sortedKeys(plan.StorageByBucket) {
		fmt.Fprintf(w, "  %s: %d\n", bucket, plan.StorageByBucket[bucket])
	}
}

func renderSummary(w io.Writer, storeID string, s *cascade.Summary) {
	fmt.Fprintf(w, "Deleted store %s\n\n", storeID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS")
	for _, table := range sortedKeys(s.RowsDeleted) {
		fmt.Fprintf(tw, "%s\t%d\n", table, s.RowsDeleted[table])
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d rows deleted, %d files removed, %d files already gone\n",
		s.TotalRows(), s.ObjectsRemoved, s.ObjectsMissing)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
