package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/state"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the event log and snapshot stores",
		Long: `Create the event log and snapshot stores per the configuration,
applying schemas, and seed an empty site:index snapshot if none exists.
Safe to run repeatedly.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := OpenEnv(rootOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "open stores", err)
			}
			defer env.Close()

			ctx := cmd.Context()
			if _, err := env.Snaps.Get(ctx, eo.RootIndex); err != nil {
				if !errors.Is(err, snapstore.ErrNotFound) {
					return WrapExitError(ExitCommandError, "check index snapshot", err)
				}
				idx := state.NewIndex()
				value, err := idx.Encode()
				if err != nil {
					return WrapExitError(ExitCommandError, "encode index snapshot", err)
				}
				err = env.Snaps.Create(ctx, snapstore.Record{
					ID:    eo.RootIndex,
					Type:  string(state.TypeIndex),
					Value: value,
				})
				if err != nil {
					return WrapExitError(ExitCommandError, "seed index snapshot", err)
				}
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			return formatter.Success(fmt.Sprintf("initialized: log=%s snapshots=%s", env.Config.LogDB, snapshotTarget(env.Config)))
		},
	}
}

func snapshotTarget(cfg Config) string {
	if cfg.SnapshotDSN != "" {
		return "postgres"
	}
	return cfg.SnapshotDB
}
