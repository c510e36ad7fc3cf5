// Package scheduler triggers the bounded runs periodically in serve mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one bounded run
type JobFunc = func(ctx context.Context) error

// Config holds configuration for the trigger
type Config struct {
	// ReconcileInterval is the period of the reconciliation job
	ReconcileInterval time.Duration

	// AlertsHour is the local hour at which the daily alert job runs
	AlertsHour int

	// Location is the zone AlertsHour is read in
	Location *time.Location

	// CheckInterval is how often to check whether the daily job is due
	CheckInterval time.Duration

	// JobTimeout bounds each run; zero means no bound
	JobTimeout time.Duration
}

// DefaultConfig returns the default trigger configuration
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 10 * time.Minute,
		AlertsHour:        8,
		Location:          time.Local,
		CheckInterval:     time.Minute,
		JobTimeout:        5 * time.Minute,
	}
}

func (c Config) validate() error {
	if c.ReconcileInterval <= 0 || c.CheckInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if c.AlertsHour < 0 || c.AlertsHour > 23 {
		return fmt.Errorf("%w: alerts hour %d", ErrInvalidConfig, c.AlertsHour)
	}
	return nil
}

// Trigger runs reconciliation on a fixed interval and alerts once a day.
// A tick is skipped while the previous run of the same job is still going.
type Trigger struct {
	config    Config
	reconcile JobFunc
	alerts    JobFunc
	logger    *zap.Logger
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    map[string]bool
	lastAlert string // date of the last daily alert run
}

// NewTrigger creates a new trigger
func NewTrigger(config Config, reconcile, alerts JobFunc, logger *zap.Logger) (*Trigger, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Trigger{
		config:    config,
		reconcile: reconcile,
		alerts:    alerts,
		logger:    logger,
		now:       time.Now,
		active:    make(map[string]bool),
	}, nil
}

// Start starts the loops
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(2)
	go t.loop(ctx, t.config.ReconcileInterval, func(ctx context.Context) {
		t.Run(ctx, "reconcile", t.reconcile)
	})
	go t.loop(ctx, t.config.CheckInterval, t.checkAlerts)

	t.logger.Info("Scheduler started",
		zap.Duration("reconcile_interval", t.config.ReconcileInterval),
		zap.Int("alerts_hour", t.config.AlertsHour),
		zap.String("location", t.config.Location.String()),
	)
	return nil
}

// Stop cancels the loops and waits for active runs to return
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer t.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// checkAlerts runs the alert job once per local day, at or after AlertsHour
func (t *Trigger) checkAlerts(ctx context.Context) {
	now := t.now().In(t.config.Location)
	today := now.Format("2006-01-02")

	t.mu.Lock()
	due := t.lastAlert != today && now.Hour() >= t.config.AlertsHour
	if due {
		t.lastAlert = today
	}
	t.mu.Unlock()

	if due {
		t.Run(ctx, "alerts", t.alerts)
	}
}

// Run executes job under name unless a run of the same name is active.
// It returns ErrAlreadyRunning when skipped.
func (t *Trigger) Run(ctx context.Context, name string, job JobFunc) error {
	t.mu.Lock()
	if t.active[name] {
		t.mu.Unlock()
		t.logger.Info("Skipping run, previous run still active", zap.String("job", name))
		return ErrAlreadyRunning
	}
	t.active[name] = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.active, name)
		t.mu.Unlock()
	}()

	if t.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	switch {
	case err == nil:
		t.logger.Info("Run finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	case errors.Is(err, context.Canceled):
		t.logger.Info("Run cancelled", zap.String("job", name))
	default:
		t.logger.Error("Run failed", zap.String("job", name), zap.Error(err))
	}
	return err
}
