package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkfold/inkfold/internal/httpapi"
	"github.com/inkfold/inkfold/internal/schema"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Serve the HTTP API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "bind address (overrides config)")

	return cmd
}

func serve(opts *ServeOptions, cmd *cobra.Command) error {
	env, err := OpenEnv(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "open stores", err)
	}
	defer env.Close()

	validator, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "compile operand schema", err)
	}

	listen := opts.Listen
	if listen == "" {
		listen = env.Config.Listen
	}

	api := httpapi.NewServer(env.Loads, env.Log, validator, slog.Default(), httpapi.Config{})
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", slog.String("addr", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "serve", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitCommandError, "shutdown", err)
		}
	}
	return nil
}
