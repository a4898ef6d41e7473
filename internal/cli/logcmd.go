package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "log <content-id>",
		Short:         "Print the most recent raw log entries for an entity",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailLog(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum entries to print")

	return cmd
}

func tailLog(opts *LogOptions, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	env, err := OpenEnv(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "open stores", err)
	}
	defer env.Close()

	entries, err := env.Log.Tail(cmd.Context(), id, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "read log", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(entries)
	}

	out := cmd.OutOrStdout()
	for _, entry := range entries {
		ev, err := entry.Decode()
		if err != nil {
			fmt.Fprintf(out, "%d  %s  <undecodable>\n", entry.OriginServerTS, entry.EventID)
			continue
		}
		fmt.Fprintf(out, "%d  %s  %s %s by %s\n",
			entry.OriginServerTS, entry.EventID, ev.Op, ev.Target, ev.Ctx.Agent)
	}
	fmt.Fprintf(out, "%d entries\n", len(entries))
	return nil
}
