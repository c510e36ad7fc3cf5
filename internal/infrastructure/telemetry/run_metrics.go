package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = errors.New("meter cannot be nil")

var (
	attrRun      = attribute.Key("run")
	attrPipeline = attribute.Key("pipeline")
	attrOutcome  = attribute.Key("outcome")
	attrCategory = attribute.Key("category")
	attrChannel  = attribute.Key("channel")
	attrStatus   = attribute.Key("status")
	attrFatal    = attribute.Key("fatal")
)

// runDurationBuckets are bucket boundaries in seconds
var runDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// RunMetrics records reconciliation, alert and delivery counters.
// A nil *RunMetrics records nothing.
type RunMetrics struct {
	items       metric.Int64Counter
	alerts      metric.Int64Counter
	deliveries  metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewRunMetrics creates the claimsync instruments on meter.
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   RunMetrics
		err error
	)
	if m.items, err = meter.Int64Counter("claimsync_reconciliation_items_total",
		metric.WithDescription("Mailbox items processed by reconciliation"), metric.WithUnit("{item}")); err != nil {
		return nil, err
	}
	if m.alerts, err = meter.Int64Counter("claimsync_alerts_generated_total",
		metric.WithDescription("Alert notifications created"), metric.WithUnit("{notification}")); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter("claimsync_notifications_delivered_total",
		metric.WithDescription("Notification delivery attempts"), metric.WithUnit("{attempt}")); err != nil {
		return nil, err
	}
	if m.runDuration, err = meter.Float64Histogram("claimsync_run_duration_seconds",
		metric.WithDescription("Duration of a reconciliation or alert run"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(runDurationBuckets...)); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordItem counts one reconciliation item outcome
func (m *RunMetrics) RecordItem(ctx context.Context, pipeline, outcome string) {
	if m == nil {
		return
	}
	m.items.Add(ctx, 1, metric.WithAttributes(attrPipeline.String(pipeline), attrOutcome.String(outcome)))
}

// RecordAlert counts created alert notifications
func (m *RunMetrics) RecordAlert(ctx context.Context, category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.alerts.Add(ctx, int64(n), metric.WithAttributes(attrCategory.String(category)))
}

// RecordDelivery counts one delivery attempt by channel and resulting status
func (m *RunMetrics) RecordDelivery(ctx context.Context, channel, status string) {
	if m == nil {
		return
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrChannel.String(channel), attrStatus.String(status)))
}

// RecordRun records the duration of a whole run
func (m *RunMetrics) RecordRun(ctx context.Context, run string, d time.Duration, fatal bool) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrRun.String(run), attrFatal.Bool(fatal)))
}
