package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkfold/inkfold/internal/loader"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Persist bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <content-id>",
		Short: "Replay log entries newer than the stored snapshot",
		Long: `Run the freshness check for one entity: fetch log entries newer than
the snapshot's last-modified watermark, replay them, and report whether
anything changed. With --persist the reconciled snapshot is written
back to the snapshot store.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Persist, "persist", false, "write the reconciled snapshot back")

	return cmd
}

func reconcile(opts *ReconcileOptions, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	env, err := OpenEnv(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "open stores", err)
	}
	defer env.Close()

	result, err := env.Loads.LoadState(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "load state", err)
	}
	if result.State == nil {
		_ = formatter.Error("not_found", fmt.Sprintf("%s not yet created", id))
		return WrapExitError(ExitFailure, "entity not yet created", nil)
	}

	fresh, err := env.Loads.ApplyFreshnessUpdate(cmd.Context(), result.State, result.Record, loader.FreshnessOptions{
		Persist:    opts.Persist,
		HistoryMax: env.Config.HistoryMax,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "freshness check", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(map[string]any{
			"had_updates": fresh.HadUpdates,
			"updated_at":  fresh.Record.UpdatedAt,
		})
	}
	if fresh.HadUpdates {
		return formatter.Success(fmt.Sprintf("%s reconciled, new watermark %d", id, fresh.Record.UpdatedAt))
	}
	return formatter.Success(fmt.Sprintf("%s already current", id))
}
