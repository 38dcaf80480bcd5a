package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/orctasks/pkg/mcp"
	"github.com/fyrsmithlabs/orctasks/pkg/oauth"
	"github.com/fyrsmithlabs/orctasks/pkg/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Run the HTTP server: the JSON-RPC gateway under gateway.prefix, the
identity bootstrap endpoints, /health and /metrics.

Agents identify themselves with the X-Agent-Workdir header; without it the
server's own working directory is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, appOptions{telemetry: true, events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.serve(ctx)
			if errors.Is(err, http.ErrServerClosed) {
				a.logger.Underlying().Info("server shutdown complete")
				return nil
			}
			return err
		},
	}
}

// httpServer wires the gateway and identity bootstrap onto a server.
func (a *app) httpServer() *server.Server {
	zl := a.logger.Underlying()
	srv := server.NewServer(a.cfg, zl.Named("http"))

	gw := mcp.NewGateway(
		mcp.NewDispatcher(a.catalogue, a.logger.Named("dispatcher")),
		a.resolver,
		mcp.Config{
			Prefix:         a.cfg.Gateway.Prefix,
			BaseURL:        a.cfg.Gateway.BaseURL,
			Realm:          a.cfg.Gateway.Realm,
			RequestTimeout: a.cfg.Server.RequestTimeout.Duration(),
			MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		},
		a.logger.Named("gateway"),
		mcp.WithMetrics(mcp.NewMetrics()),
	)
	srv.Echo().Use(gw.Middleware())

	oauth.NewHandler(a.cfg.Gateway.BaseURL, a.cfg.Gateway.Prefix, oauth.WithLogger(zl.Named("oauth"))).
		Register(srv.Echo())
	return srv
}

func (a *app) serve(ctx context.Context) error {
	srv := a.httpServer()
	a.logger.Underlying().Info("starting orctasks",
		zap.String("address", srv.Address()),
		zap.String("mcp_prefix", a.cfg.Gateway.Prefix),
		zap.String("base_url", a.cfg.Gateway.BaseURL),
		zap.Int("tools", len(a.catalogue.List())),
	)
	return srv.Start(ctx)
}
