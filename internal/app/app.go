package app

import (
	"context"
	"fmt"

	"dojihunter/internal/config"
	"dojihunter/internal/engine"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/logger"
	"dojihunter/internal/scheduler"
	"dojihunter/internal/store"
	"dojihunter/internal/store/journal"
	apihttp "dojihunter/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns the assembled system: gateway, stores, engine, scheduler and
// the operator HTTP API.
type App struct {
	cfg        *config.Config
	configPath string
	settings   *config.Settings
	st         store.Store
	jrnl       *journal.Journal
	gw         mt5.Gateway
	orch       *engine.Orchestrator
	sched      *scheduler.Scheduler
	httpSrv    *apihttp.Server
}

// New builds the application from configuration without starting it.
func New(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg, configPath)
}

// Orchestrator exposes the engine for test and replay harnesses.
func (a *App) Orchestrator() *engine.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

// Run starts the scheduler and the HTTP API and blocks until ctx is
// cancelled or one of them fails. A startup reconciliation settles any
// order that vanished while the process was down.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if settled, err := a.orch.Reconcile(ctx); err != nil {
		logger.Warnf("startup reconcile failed: %v", err)
	} else if settled > 0 {
		logger.Infof("startup reconcile settled %d order(s)", settled)
	}

	if a.configPath != "" {
		if err := config.Watch(a.configPath, a.settings); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.sched.Start(ctx)
		return nil
	})
	logger.Infof("dojihunter running: mode=%s http=%s symbols=%v", a.cfg.Trading.Mode, a.httpSrv.Addr(), a.cfg.Trading.Symbols)
	return group.Wait()
}

// Close releases the stores. Safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.jrnl != nil {
		if err := a.jrnl.Close(); err != nil {
			logger.Warnf("closing journal: %v", err)
		}
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			logger.Warnf("closing history store: %v", err)
		}
	}
}
