package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/orctasks/internal/aggregator"
	"github.com/fyrsmithlabs/orctasks/internal/config"
	"github.com/fyrsmithlabs/orctasks/internal/events"
	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/fyrsmithlabs/orctasks/internal/ledger/sqlite"
	"github.com/fyrsmithlabs/orctasks/internal/logging"
	"github.com/fyrsmithlabs/orctasks/internal/telemetry"
	"github.com/fyrsmithlabs/orctasks/internal/tools"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "github.com/fyrsmithlabs/orctasks"

// app holds everything a command needs once bootstrapped.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     *sqlite.Store
	ledger    *ledger.Service
	catalogue *tools.Catalogue
	resolver  *identity.Resolver
	nc        *nats.Conn
}

type appOptions struct {
	// logOutput replaces stdout for logs.
	logOutput zapcore.WriteSyncer
	// telemetry enables OTLP export when configured.
	telemetry bool
	// events connects the NATS publisher when configured.
	events bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out zapcore.WriteSyncer) (*logging.Logger, error) {
	lcfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	lcfg.Output = out
	return logging.NewLogger(lcfg, nil)
}

// bootstrap loads config and builds the ledger stack. Callers must Close
// the returned app.
func bootstrap(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, opts)
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := newLogger(cfg, opts.logOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	zl := logger.Underlying()

	if opts.telemetry {
		a.telemetry, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		if h := a.telemetry.Health(); h.Degraded {
			zl.Warn("telemetry degraded", zap.Strings("reasons", h.Reasons))
		}
	}

	path, err := config.ExpandHome(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.store, err = sqlite.Open(ctx, path)
	if err != nil {
		a.Close()
		return nil, err
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(zl.Named("ledger"))}
	if opts.events && cfg.Events.NATSURL != "" {
		a.nc, err = events.Connect(cfg.Events.NATSURL, cfg.Events.Token.Value(), zl)
		if err != nil {
			a.Close()
			return nil, err
		}
		pub := events.NewPublisher(a.nc, cfg.Events.SubjectPrefix, zl.Named("events"))
		ledgerOpts = append(ledgerOpts, ledger.WithNotifier(pub))
		zl.Info("publishing history events",
			zap.String("url", cfg.Events.NATSURL),
			zap.String("subject_prefix", cfg.Events.SubjectPrefix),
			logging.Secret("nats_token", cfg.Events.Token))
	}
	a.ledger = ledger.NewService(a.store, ledgerOpts...)

	a.catalogue, err = tools.Default(
		tools.Deps{Ledger: a.ledger, Aggregator: aggregator.New(a.store)},
		tools.WithLogger(zl.Named("tools")),
		tools.WithTracer(a.telemetry.Tracer(instrumentationName)),
		tools.WithMetrics(tools.NewMetricsWithMeter(a.telemetry.Meter(instrumentationName), zl)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.resolver = identity.NewResolver(a.ledger,
		identity.WithMarkers(cfg.Identity.OrchestratorMarker, cfg.Identity.WorktreesMarker))
	return a, nil
}

// Close releases the app's resources. Safe on a partially built app.
func (a *app) Close() {
	if a.nc != nil {
		_ = a.nc.Drain()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Underlying().Warn("closing ledger store", zap.Error(err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(context.Background()); err != nil {
			a.logger.Underlying().Warn("telemetry shutdown", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
