package scheduler

import (
	"context"
	"time"

	"dojihunter/internal/config"
	"dojihunter/internal/engine"
	"dojihunter/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Scheduler drives the periodic trading loop: one tick runs an analysis
// cycle per enabled symbol, a closing sweep, and a reconciliation pass.
// The interval is re-read from the live settings every tick so a settings
// update takes effect on the next wake-up without a restart.
type Scheduler struct {
	orch     *engine.Orchestrator
	settings *config.Settings

	// RunImmediately fires one tick before the first wait.
	RunImmediately bool

	nowFn func() time.Time
}

func New(orch *engine.Orchestrator, settings *config.Settings) *Scheduler {
	return &Scheduler{
		orch:           orch,
		settings:       settings,
		RunImmediately: true,
		nowFn:          time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	startAt := s.nowFn().UTC()
	logger.Infof("scheduler: started at %s", startAt.Format(time.RFC3339))

	if s.RunImmediately {
		s.tick(ctx)
	}
	for {
		interval := s.interval()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("scheduler: context done, exiting (uptime %s)", s.nowFn().UTC().Sub(startAt).Truncate(time.Second))
			return
		case <-timer.C:
		}
		s.tick(ctx)
	}
}

func (s *Scheduler) interval() time.Duration {
	secs := s.settings.Current().IntervalSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// tick runs one full pass. A panic in any stage is recovered and logged;
// the loop must survive a bad cycle.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scheduler: tick panicked: %v", r)
		}
	}()

	cfg := s.settings.Current()
	if !cfg.Enabled {
		logger.Debugf("scheduler: trading disabled, tick skipped")
		return
	}

	health, err := s.orch.TradingReady(ctx)
	if err != nil || !health.Ready {
		logger.Warnf("scheduler: venue not ready for trading, tick skipped (errors=%v err=%v)", health.Errors, err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range cfg.Symbols {
		symbol := symbol
		g.Go(func() error {
			if _, err := s.orch.RunCycle(gctx, symbol); err != nil {
				logger.Errorf("scheduler: cycle for %s failed: %v", symbol, err)
			}
			// Cycle failures never cancel sibling symbols.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Errorf("scheduler: cycle group failed: %v", err)
	}

	if report, err := s.orch.Monitor(ctx); err != nil {
		logger.Errorf("scheduler: closing sweep failed: %v", err)
	} else if report.Checked > 0 {
		logger.Infof("scheduler: closing sweep checked=%d closed=%d failed=%d", report.Checked, report.Closed, report.Failed)
	}

	if settled, err := s.orch.Reconcile(ctx); err != nil {
		logger.Warnf("scheduler: reconcile failed: %v", err)
	} else if settled > 0 {
		logger.Infof("scheduler: reconciled %d vanished order(s)", settled)
	}
}
