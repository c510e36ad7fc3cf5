// Package notifying delivers stored notifications over the registered channels.
package notifying

import (
	"context"
	"errors"
	"fmt"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/claimsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadySent is returned when a resend targets a delivered notification
var ErrAlreadySent = shared.NewDomainError("ALREADY_SENT", "Notification was already sent")

// Dispatcher moves notifications from pending or failed to sent or failed.
// It never retries on its own; a failed notification waits for Resend.
type Dispatcher struct {
	repo     notification.Repository
	cases    claim.CaseRepository
	registry *notification.Registry
	metrics  *telemetry.RunMetrics
	clock    shared.Clock
	logger   *zap.Logger
}

// NewDispatcher creates a new Dispatcher. cases is only used to put the
// case number on outgoing messages and may be nil.
func NewDispatcher(
	repo notification.Repository,
	cases claim.CaseRepository,
	registry *notification.Registry,
	metrics *telemetry.RunMetrics,
	clock shared.Clock,
	logger *zap.Logger,
) *Dispatcher {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Dispatcher{
		repo:     repo,
		cases:    cases,
		registry: registry,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
	}
}

// Deliver sends n over its channel and records the result on n and in the
// store. A channel failure is not returned: it ends up in n.ErrorDetail with
// status failed. The returned error is a store failure.
func (d *Dispatcher) Deliver(ctx context.Context, n *notification.Notification) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "notification", "deliver")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrNotificationID, n.ID.String(),
		telemetry.SpanAttrChannel, n.Channel,
		telemetry.SpanAttrCategory, string(n.Category),
	)

	from := n.Status
	if from == notification.StatusSent {
		return ErrAlreadySent
	}

	sendErr := d.send(ctx, n)
	if sendErr != nil {
		n.MarkFailed(sendErr.Error())
	} else {
		n.MarkSent(d.clock())
	}

	if err := d.repo.UpdateDelivery(ctx, n, from); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("record delivery of notification %s: %w", n.ID, err)
	}
	d.metrics.RecordDelivery(ctx, n.Channel, string(n.Status))

	if sendErr != nil {
		telemetry.RecordError(span, sendErr)
		d.logger.Warn("Notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", n.Channel),
			zap.String("recipient", n.Recipient),
			zap.Error(sendErr),
		)
		return nil
	}

	telemetry.SetOK(span)
	d.logger.Debug("Notification delivered",
		zap.String("notification_id", n.ID.String()),
		zap.String("channel", n.Channel),
	)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, n *notification.Notification) error {
	ch, ok := d.registry.Channel(n.Channel)
	if !ok {
		return fmt.Errorf("channel %q is not enabled", n.Channel)
	}
	return ch.Send(ctx, n.Message(d.caseNumber(ctx, n.CaseID)))
}

func (d *Dispatcher) caseNumber(ctx context.Context, id *uuid.UUID) string {
	if d.cases == nil || id == nil {
		return ""
	}
	c, err := d.cases.FindByID(ctx, *id)
	if err != nil {
		d.logger.Debug("Case lookup for notification failed", zap.Error(err))
		return ""
	}
	return c.Number
}

// DeliveryReport counts the outcome of DeliverAll
type DeliveryReport struct {
	Sent   int
	Failed int
	Errors []error
}

// DeliverAll delivers each notification in order
func (d *Dispatcher) DeliverAll(ctx context.Context, ns []*notification.Notification) DeliveryReport {
	var report DeliveryReport
	for _, n := range ns {
		if err := d.Deliver(ctx, n); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		if n.Status == notification.StatusSent {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	return report
}

// Resend loads a notification and delivers it again.
// A sent notification is refused with ErrAlreadySent.
func (d *Dispatcher) Resend(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	n, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status == notification.StatusSent {
		return n, ErrAlreadySent
	}
	if err := d.Deliver(ctx, n); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			d.logger.Info("Notification changed during resend", zap.String("notification_id", id.String()))
		}
		return n, err
	}
	return n, nil
}

// Get returns a notification by id
func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	return d.repo.FindByID(ctx, id)
}
