package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noop(context.Context) error { return nil }

func TestNewTrigger_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlertsHour = 24
	_, err := NewTrigger(cfg, noop, noop, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.ReconcileInterval = 0
	_, err = NewTrigger(cfg, noop, noop, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTrigger_RunSkipsWhileActive(t *testing.T) {
	trigger, err := NewTrigger(DefaultConfig(), noop, noop, zap.NewNop())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- trigger.Run(context.Background(), "reconcile", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err = trigger.Run(context.Background(), "reconcile", noop)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	assert.NoError(t, trigger.Run(context.Background(), "alerts", noop), "other jobs are independent")

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, trigger.Run(context.Background(), "reconcile", noop))
}

func TestTrigger_RunAppliesTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	trigger, err := NewTrigger(cfg, noop, noop, zap.NewNop())
	require.NoError(t, err)

	err = trigger.Run(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTrigger_AlertsOncePerDay(t *testing.T) {
	var runs atomic.Int32
	cfg := DefaultConfig()
	cfg.AlertsHour = 8
	cfg.Location = time.UTC
	trigger, err := NewTrigger(cfg, noop, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	clock := time.Date(2026, 3, 2, 7, 59, 0, 0, time.UTC)
	trigger.now = func() time.Time { return clock }

	trigger.checkAlerts(context.Background())
	assert.EqualValues(t, 0, runs.Load(), "before the hour")

	clock = clock.Add(time.Minute)
	trigger.checkAlerts(context.Background())
	clock = clock.Add(3 * time.Hour)
	trigger.checkAlerts(context.Background())
	assert.EqualValues(t, 1, runs.Load(), "once on the day")

	clock = clock.AddDate(0, 0, 1)
	trigger.checkAlerts(context.Background())
	assert.EqualValues(t, 2, runs.Load())
}

func TestTrigger_StartStop(t *testing.T) {
	var runs atomic.Int32
	cfg := DefaultConfig()
	cfg.ReconcileInterval = 5 * time.Millisecond
	trigger, err := NewTrigger(cfg, func(context.Context) error {
		runs.Add(1)
		return nil
	}, noop, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()), "second start is a no-op")

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))
}
