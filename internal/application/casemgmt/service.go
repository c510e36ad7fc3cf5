// Package casemgmt applies operator-driven lifecycle transitions to cases.
package casemgmt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/application/notifying"
	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/claimsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Transition names accepted by Apply
const (
	TransitionRequestDocumentation = "request_documentation"
	TransitionNotifyBroker         = "notify_broker"
	TransitionSendToInsurer        = "send_to_insurer"
	TransitionStartEvaluation      = "start_evaluation"
	TransitionSignIndemnity        = "sign_indemnity"
	TransitionSettle               = "settle"
	TransitionClose                = "close"
)

// ErrUnknownTransition is returned for a name Apply does not know
var ErrUnknownTransition = shared.NewDomainError("UNKNOWN_TRANSITION", "Unknown case transition")

// Transitions lists the names accepted by Apply in lifecycle order
func Transitions() []string {
	return []string{
		TransitionRequestDocumentation,
		TransitionNotifyBroker,
		TransitionSendToInsurer,
		TransitionStartEvaluation,
		TransitionSignIndemnity,
		TransitionSettle,
		TransitionClose,
	}
}

// Result is what Apply returns: the saved case, its change and the ids of
// any side-effect notifications
type Result struct {
	Case          *claim.Case
	Change        claim.StateChange
	Notifications []*notification.Notification
}

// Service applies named transitions and raises the lifecycle notifications
type Service struct {
	cases         claim.CaseRepository
	policies      claim.PolicyRepository
	notifications notification.Repository
	registry      *notification.Registry
	dispatcher    *notifying.Dispatcher
	clock         shared.Clock
	logger        *zap.Logger
}

// NewService creates a new Service
func NewService(
	cases claim.CaseRepository,
	policies claim.PolicyRepository,
	notifications notification.Repository,
	registry *notification.Registry,
	dispatcher *notifying.Dispatcher,
	clock shared.Clock,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{
		cases:         cases,
		policies:      policies,
		notifications: notifications,
		registry:      registry,
		dispatcher:    dispatcher,
		clock:         clock,
		logger:        logger,
	}
}

// Apply runs the named transition on the case with the given number and
// saves it under the state guard. Notifications raised by the transition
// are best effort: their failures are logged and never undo the transition.
func (s *Service) Apply(ctx context.Context, number, name string) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "case", "transition")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCaseNumber, number,
		telemetry.SpanAttrTransition, name,
	)

	c, err := s.cases.FindByNumber(ctx, number)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock()
	change, err := run(c, name, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.cases.SaveTransition(ctx, c, change); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Case transition applied",
		zap.String("case_number", c.Number),
		zap.String("transition", name),
		zap.String("from", string(change.Previous)),
		zap.String("to", string(change.Current)),
	)

	result := &Result{Case: c, Change: change}
	result.Notifications = s.sideEffects(ctx, c, change)
	telemetry.SetOK(span)
	return result, nil
}

// NotifyBroker moves the case to notified_broker and sends the broker notice
func (s *Service) NotifyBroker(ctx context.Context, number string) (*Result, error) {
	return s.Apply(ctx, number, TransitionNotifyBroker)
}

// Settle records payment and informs custodian and broker
func (s *Service) Settle(ctx context.Context, number string) (*Result, error) {
	return s.Apply(ctx, number, TransitionSettle)
}

// Close ends the case and informs custodian and broker
func (s *Service) Close(ctx context.Context, number string) (*Result, error) {
	return s.Apply(ctx, number, TransitionClose)
}

func run(c *claim.Case, name string, at time.Time) (claim.StateChange, error) {
	switch name {
	case TransitionRequestDocumentation:
		return c.RequestDocumentation(at)
	case TransitionNotifyBroker:
		return c.NotifyBroker(at)
	case TransitionSendToInsurer:
		return c.SendToInsurer(at)
	case TransitionStartEvaluation:
		return c.StartEvaluation(at)
	case TransitionSignIndemnity:
		return c.SignIndemnity(at)
	case TransitionSettle:
		return c.MarkSettled(at)
	case TransitionClose:
		return c.Close(at)
	}
	return claim.StateChange{}, fmt.Errorf("%w: %q", ErrUnknownTransition, name)
}

// sideEffects derives the lifecycle notifications from the change
func (s *Service) sideEffects(ctx context.Context, c *claim.Case, change claim.StateChange) []*notification.Notification {
	var (
		category notification.Category
		contacts []notification.Contact
	)

	policy, err := s.policy(ctx, c)
	if err != nil {
		s.logger.Warn("Policy lookup failed for lifecycle notification",
			zap.String("case_number", c.Number), zap.Error(err))
	}
	broker := alerting.BrokerContact(c, policy)
	custodian := notification.Contact{Name: c.CustodianName, Email: c.CustodianEmail, Phone: c.CustodianPhone}

	switch change.Current {
	case claim.StateNotifiedBroker:
		category, contacts = notification.CategoryBrokerCaseNotice, []notification.Contact{broker}
	case claim.StateSettled, claim.StateClosed:
		category, contacts = notification.CategoryCaseClosure, []notification.Contact{custodian, broker}
	default:
		return nil
	}

	msg := alerting.Render(category, c, policy, change.At)
	var created []*notification.Notification
	for _, contact := range contacts {
		for _, d := range s.registry.Plan(category, contact) {
			n, err := notification.NewNotification(category, d.Channel, d.Recipient, msg, change.At)
			if err != nil {
				s.logger.Warn("Lifecycle notification rejected", zap.String("case_number", c.Number), zap.Error(err))
				continue
			}
			caseID := c.ID
			n.CaseID = &caseID
			n.PolicyID = c.PolicyID
			if err := s.notifications.Create(ctx, n); err != nil {
				s.logger.Warn("Lifecycle notification not stored",
					zap.String("case_number", c.Number),
					zap.String("category", string(category)),
					zap.Error(err),
				)
				continue
			}
			created = append(created, n)
		}
	}
	if len(created) == 0 {
		s.logger.Warn("No recipient for lifecycle notification",
			zap.String("case_number", c.Number),
			zap.String("category", string(category)),
		)
		return nil
	}

	report := s.dispatcher.DeliverAll(ctx, created)
	for _, err := range report.Errors {
		s.logger.Warn("Lifecycle notification delivery not recorded",
			zap.String("case_number", c.Number), zap.Error(err))
	}
	return created
}

func (s *Service) policy(ctx context.Context, c *claim.Case) (*claim.Policy, error) {
	if c.PolicyID == nil || s.policies == nil {
		return nil, nil
	}
	p, err := s.policies.FindByID(ctx, *c.PolicyID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return p, err
}
