package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// DefaultSpec runs the reveal pass once per second.
const DefaultSpec = "@every 1s"

// Ticker is the reveal pass driven by the scheduler.
type Ticker interface {
	Tick(ctx context.Context) (*app.TickReport, error)
}

// Scheduler owns the timing of reveal passes. It never decides what is
// revealed; every pass recomputes from the current time.
type Scheduler struct {
	cron    *cron.Cron
	ticker  Ticker
	logger  ports.Logger
	ctx     context.Context
	timeout time.Duration
}

// Config holds the scheduler settings.
type Config struct {
	Spec    string        // Cron spec with optional seconds field, e.g. "@every 1s" or "*/5 * * * * *"
	Timeout time.Duration // Upper bound for one pass; zero means no bound
}

// New creates a Scheduler and registers the reveal pass under cfg.Spec.
// Passes never overlap: a pass that is due while the previous one runs is skipped.
func New(ctx context.Context, cfg Config, ticker Ticker, logger ports.Logger) (*Scheduler, error) {
	if ticker == nil || logger == nil {
		return nil, fmt.Errorf("ticker and logger are required for scheduler")
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	cl := cronLogger{ctx: ctx, logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ticker:  ticker,
		logger:  logger,
		ctx:     ctx,
		timeout: cfg.Timeout,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, s.run); err != nil {
		return nil, fmt.Errorf("register reveal pass %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "Scheduler started", map[string]interface{}{"entries": len(s.cron.Entries())})
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info(s.ctx, "Scheduler stopped")
}

// RunNow executes one pass immediately, e.g. to catch up after downtime.
func (s *Scheduler) RunNow() (*app.TickReport, error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.ticker.Tick(ctx)
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.RunNow(); err != nil {
		s.logger.Error(s.ctx, err, "Scheduler: Reveal pass failed")
	}
}

// cronLogger adapts ports.Logger to cron.Logger.
type cronLogger struct {
	ctx    context.Context
	logger ports.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(l.ctx, "cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(l.ctx, err, "cron: "+msg, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
