package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/schema"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Op      string
	Target  string
	Operand string
	Txn     string
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Validate and append one event to the log",
		Long: `Build an event from flags, validate its operand, and append it.

Example:
  inkfold append --op INS --target 'page:home/block:b1' \
    --operand '{"block_type":"text","data":{"text":"hello"},"after":null}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appendEvent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Op, "op", "", "operator (INS|DES|ALT|SYN|NUL)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target address (rootId[/childType:childId])")
	cmd.Flags().StringVar(&opts.Operand, "operand", "{}", "operand payload as JSON")
	cmd.Flags().StringVar(&opts.Txn, "txn", "", "idempotency key (default: fresh UUID)")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func appendEvent(opts *AppendOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	var operand map[string]any
	if err := json.Unmarshal([]byte(opts.Operand), &operand); err != nil {
		return WrapExitError(ExitCommandError, "invalid --operand JSON", err)
	}

	env, err := OpenEnv(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "open stores", err)
	}
	defer env.Close()

	txn := opts.Txn
	if txn == "" {
		txn = uuid.NewString()
	}
	ev := eo.Event{
		Op:      eo.Op(opts.Op),
		Target:  opts.Target,
		Operand: operand,
		Ctx: eo.Ctx{
			Agent: env.Config.Agent,
			TS:    eo.FormatTS(time.Now()),
			Txn:   txn,
		},
	}

	validator, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "compile operand schema", err)
	}
	if err := validator.Validate(ev); err != nil {
		_ = formatter.Error("invalid_operand", err.Error())
		return WrapExitError(ExitFailure, "operand rejected", err)
	}

	entry, err := env.Log.Append(cmd.Context(), ev)
	if err != nil {
		return WrapExitError(ExitCommandError, "append event", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(map[string]any{
			"event_id":         entry.EventID,
			"origin_server_ts": entry.OriginServerTS,
		})
	}
	return formatter.Success(fmt.Sprintf("appended %s at %d", entry.EventID, entry.OriginServerTS))
}
