package cli

import (
	"context"

	"github.com/spf13/cobra"

	"sheetsplit/internal/app"
	"sheetsplit/internal/infrastructure"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API, the websocket event stream and the metrics endpoint.

Request paths are resolved inside paths.data_dir. The server stops on SIGINT or
SIGTERM.

Example:
  sheetsplit serve
  sheetsplit serve --port 9090 --config sheetsplit.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := rootOpts.logger(cmd, false)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize logger", err)
			}
			defer infrastructure.CloseLogFile()

			a, err := app.NewApplication(cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to start application", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.Run(ctx); err != nil {
				return WrapExitError(ExitFailure, "server error", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
