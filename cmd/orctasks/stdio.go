package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/pkg/mcp/stdio"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStdioCmd() *cobra.Command {
	var workdir string
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout",
		Long: `Serve the tool catalogue over the MCP stdio transport, for agents that
launch orctasks as a subprocess. Logs go to stderr.

The caller is the directory orctasks was started in, unless --workdir is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, appOptions{logOutput: os.Stderr, telemetry: true, events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if workdir == "" {
				workdir = identity.ProcessDir()
			}
			srv, err := stdio.NewServer(a.catalogue, a.resolver, workdir, a.logger.Underlying().Named("stdio"))
			if err != nil {
				return fmt.Errorf("failed to create stdio server: %w", err)
			}

			a.logger.Underlying().Info("starting orctasks in MCP stdio mode", zap.String("workdir", workdir))
			if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("stdio server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workdir, "workdir", "", "working directory used to resolve the caller")
	return cmd
}
