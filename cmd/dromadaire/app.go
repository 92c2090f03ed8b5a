package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dromadaire/internal/aggregate"
	"dromadaire/internal/clients"
	"dromadaire/internal/config"
	"dromadaire/internal/observability"
	"dromadaire/internal/registry"
	"dromadaire/internal/session"
	"dromadaire/internal/storage"
	"dromadaire/internal/storage/postgres"
	"dromadaire/internal/sugar"
)

// app is the wiring shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   storage.SelectionStore
	pg      *postgres.Store
	pool    *clients.Pool
	engine  *aggregate.Engine
	ctrl    *session.Controller
}

type appOptions struct {
	// logToFile routes logs to cfg.LogFile, used when the terminal belongs to the UI.
	logToFile bool
}

func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logPath := ""
	if opts.logToFile {
		logPath = cfg.LogFile
	}
	logger, err := newLogger(cfg.LogLevel, logPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics("dromadaire")}

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		a.pg = pg
		a.store = pg
		logger.Info("postgres connected", zap.String("dsn", redactDSN(cfg.PGDSN)))
	} else {
		a.store = storage.NewSelectionFile(cfg.StateFile)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.MetricsAddr, a.metrics, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	opener := sugar.NewOpener(cfg.Endpoints(), cfg.HandleConfig(), nil, logger)
	a.pool = clients.NewPool(opener, logger)
	a.engine = aggregate.NewEngine(a.pool, aggregate.Config{
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      a.metrics,
	}, logger)
	a.ctrl = session.NewController(a.pool, a.engine, session.Config{
		Store:   a.store,
		Metrics: a.metrics,
	}, logger)
	return a, nil
}

// fallback is the selection used when nothing was saved: the chains config
// key, or the default chains.
func (a *app) fallback() (registry.Selection, error) {
	if len(a.cfg.Chains) > 0 {
		return registry.NewSelection(a.cfg.Chains)
	}
	return registry.DefaultSelection(), nil
}

// selection resolves the chains of a one-shot command: the --chains flag, then
// the saved selection, then the fallback.
func (a *app) selection(ctx context.Context, flagIDs []string) (registry.Selection, error) {
	if len(flagIDs) > 0 {
		return registry.NewSelection(flagIDs)
	}
	saved, ok, err := a.store.LoadSelection(ctx)
	if err != nil {
		a.logger.Warn("load saved selection", zap.Error(err))
	}
	if ok {
		if sel, err := registry.NewSelection(saved); err == nil {
			return sel, nil
		}
		a.logger.Warn("ignore invalid saved selection", zap.Strings("chains", saved))
	}
	return a.fallback()
}

func (a *app) Close() {
	if err := a.ctrl.Close(); err != nil {
		a.logger.Warn("close handles", zap.Error(err))
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.logger.Sync()
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
