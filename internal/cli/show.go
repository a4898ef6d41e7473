package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkfold/inkfold/internal/loader"
	"github.com/inkfold/inkfold/internal/state"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Fresh bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "show <content-id>",
		Short:         "Load and print a content entity's current state",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showState(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fresh, "fresh", false, "reconcile against the log before printing")

	return cmd
}

func showState(opts *ShowOptions, id string, cmd *cobra.Command) error {
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

	snap := result.State
	if opts.Fresh {
		fresh, err := env.Loads.ApplyFreshnessUpdate(cmd.Context(), snap, result.Record, loader.FreshnessOptions{})
		if err != nil {
			return WrapExitError(ExitCommandError, "freshness check", err)
		}
		snap = fresh.State
	}

	if opts.Format == "json" {
		return formatter.JSON(map[string]any{"state": snap, "source": result.Source})
	}
	printSnapshot(cmd, snap, result.Source)
	return nil
}

func printSnapshot(cmd *cobra.Command, snap *state.Snapshot, source loader.Source) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s, via %s)\n", snap.ContentID, snap.ContentType, source)
	if snap.Meta.Title != "" {
		fmt.Fprintf(out, "  title: %s\n", snap.Meta.Title)
	}
	if snap.Meta.Status != "" {
		fmt.Fprintf(out, "  status: %s/%s\n", snap.Meta.Status, snap.Meta.Visibility)
	}

	switch {
	case snap.Page != nil:
		fmt.Fprintf(out, "  blocks: %d live of %d\n", len(snap.Page.BlockOrder), len(snap.Page.Blocks))
		for _, id := range snap.Page.BlockOrder {
			if b := snap.Page.FindBlock(id); b != nil {
				fmt.Fprintf(out, "    %s [%s]\n", b.BlockID, b.BlockType)
			}
		}
	case snap.Wiki != nil:
		fmt.Fprintf(out, "  revisions: %d\n", len(snap.Wiki.Revisions))
		if cur := snap.Wiki.CurrentRevision; cur != nil {
			fmt.Fprintf(out, "  current: %s (%s)\n", cur.RevID, cur.TS)
		}
		if snap.Wiki.HasConflict {
			fmt.Fprintf(out, "  CONFLICT between: %v\n", snap.Wiki.ConflictCandidates)
		}
	case snap.Experiment != nil:
		fmt.Fprintf(out, "  entries: %d\n", len(snap.Experiment.Entries))
		for _, e := range snap.Experiment.Entries {
			fmt.Fprintf(out, "    %s [%s]\n", e.EntryID, e.Kind)
		}
	case snap.Index != nil:
		fmt.Fprintf(out, "  entries: %d, nav: %d\n", len(snap.Index.Entries), len(snap.Index.Nav))
		for _, e := range snap.Index.Nav {
			fmt.Fprintf(out, "    /%s -> %s\n", e.Slug, e.ContentID)
		}
	}
	fmt.Fprintf(out, "  history: %d events\n", len(snap.History))
}
