// Package alerting scans open cases and raises time-based alerts.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claimsync/backend/internal/application/notifying"
	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/claimsync/backend/internal/infrastructure/logger"
	"github.com/claimsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the sweeps
type Options struct {
	Location              *time.Location
	InsurerResponseWindow time.Duration // default 48h
	DepositWindow         time.Duration // default 24h
}

// RunOptions configures a single run
type RunOptions struct {
	// DryRun evaluates the predicates and dedup checks and reports counts
	// without creating or delivering anything
	DryRun bool
}

// Summary is the outcome of one alert run. Counts are cases, not channels.
type Summary struct {
	RunID           string    `json:"run_id" yaml:"run_id"`
	InsurerResponse int       `json:"insurer_response" yaml:"insurer_response"`
	Custodian       int       `json:"custodian" yaml:"custodian"`
	Documentation   int       `json:"documentation" yaml:"documentation"`
	Deposit         int       `json:"deposit" yaml:"deposit"`
	Delivered       int       `json:"delivered" yaml:"delivered"`
	DeliveryFailed  int       `json:"delivery_failed" yaml:"delivery_failed"`
	Errors          []string  `json:"errors" yaml:"errors"`
	DryRun          bool      `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	StartedAt       time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time `json:"finished_at" yaml:"finished_at"`
}

// Total returns the number of cases alerted across all sweeps
func (s *Summary) Total() int {
	return s.InsurerResponse + s.Custodian + s.Documentation + s.Deposit
}

func (s *Summary) addError(c *claim.Case, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", c.Number, err))
}

// Evaluator runs the four alert sweeps
type Evaluator struct {
	cases         claim.CaseRepository
	policies      claim.PolicyRepository
	notifications notification.Repository
	scope         TransactionScope
	registry      *notification.Registry
	dispatcher    *notifying.Dispatcher
	metrics       *telemetry.RunMetrics
	opts          Options
	clock         shared.Clock
	logger        *zap.Logger
}

// NewEvaluator creates a new Evaluator
func NewEvaluator(
	cases claim.CaseRepository,
	policies claim.PolicyRepository,
	notifications notification.Repository,
	scope TransactionScope,
	registry *notification.Registry,
	dispatcher *notifying.Dispatcher,
	metrics *telemetry.RunMetrics,
	opts Options,
	clock shared.Clock,
	logger *zap.Logger,
) *Evaluator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.InsurerResponseWindow == 0 {
		opts.InsurerResponseWindow = 48 * time.Hour
	}
	if opts.DepositWindow == 0 {
		opts.DepositWindow = 24 * time.Hour
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Evaluator{
		cases:         cases,
		policies:      policies,
		notifications: notifications,
		scope:         scope,
		registry:      registry,
		dispatcher:    dispatcher,
		metrics:       metrics,
		opts:          opts,
		clock:         clock,
		logger:        logger,
	}
}

// sweep is one alert kind. A zero window means the case carries its own
// marker, set by mark under the alert lock.
type sweep struct {
	name     string
	category notification.Category
	find     func(ctx context.Context) ([]*claim.Case, error)
	eligible func(c *claim.Case, now time.Time) bool
	window   time.Duration
	mark     func(ctx context.Context, repo claim.CaseRepository, c *claim.Case, now time.Time) (bool, error)
	contact  func(c *claim.Case, p *claim.Policy) notification.Contact
	count    func(s *Summary) *int
}

func (e *Evaluator) sweeps() []sweep {
	return []sweep{
		{
			name:     "insurer_response",
			category: notification.CategoryInsurerResponseAlert,
			find:     e.cases.FindAwaitingInsurerResponse,
			eligible: func(c *claim.Case, _ time.Time) bool { return c.AwaitingInsurerResponse() },
			window:   e.opts.InsurerResponseWindow,
			contact:  BrokerContact,
			count:    func(s *Summary) *int { return &s.InsurerResponse },
		},
		{
			name:     "custodian",
			category: notification.CategoryCustodianNotice,
			find: func(ctx context.Context) ([]*claim.Case, error) {
				return e.cases.FindWithoutCustodianNotice(ctx, claim.StatesUpTo(claim.StateUnderEvaluation))
			},
			eligible: func(c *claim.Case, _ time.Time) bool { return c.NeedsCustodianNotice() },
			mark: func(ctx context.Context, repo claim.CaseRepository, c *claim.Case, now time.Time) (bool, error) {
				return repo.MarkCustodianNotified(ctx, c.ID, now)
			},
			contact: custodianContact,
			count:   func(s *Summary) *int { return &s.Custodian },
		},
		{
			name:     "documentation",
			category: notification.CategoryDocumentationReminder,
			find: func(ctx context.Context) ([]*claim.Case, error) {
				return e.cases.FindInState(ctx, claim.StateDocumentationPending)
			},
			eligible: func(c *claim.Case, now time.Time) bool {
				return c.DocumentationReminderDue(now, e.opts.Location)
			},
			mark: func(ctx context.Context, repo claim.CaseRepository, c *claim.Case, now time.Time) (bool, error) {
				return repo.MarkDocumentationReminded(ctx, c.ID, claim.CalendarDay(now, e.opts.Location))
			},
			contact: custodianContact,
			count:   func(s *Summary) *int { return &s.Documentation },
		},
		{
			name:     "deposit",
			category: notification.CategoryDepositAlert,
			find:     e.cases.FindDepositPending,
			eligible: func(c *claim.Case, _ time.Time) bool { return c.DepositPending() },
			window:   e.opts.DepositWindow,
			contact:  BrokerContact,
			count:    func(s *Summary) *int { return &s.Deposit },
		},
	}
}

// BrokerContact addresses the broker of c by email and, for urgent
// categories, by phone.
func BrokerContact(c *claim.Case, p *claim.Policy) notification.Contact {
	contact := notification.Contact{
		Email: claim.BrokerContactEmail(c, p),
		Phone: claim.BrokerContactPhone(c, p),
	}
	if p != nil {
		contact.Name = p.BrokerName
	}
	return contact
}

func custodianContact(c *claim.Case, _ *claim.Policy) notification.Contact {
	return notification.Contact{
		Name:  c.CustodianName,
		Email: c.CustodianEmail,
		Phone: c.CustodianPhone,
	}
}

// Run evaluates every sweep once. Per-case failures are collected in the
// summary and never stop the run; the returned error is reserved for a
// sweep query that could not be executed at all.
func (e *Evaluator) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "alerts", "run")
	defer span.End()

	runID := logger.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, log := logger.WithRunID(ctx, e.logger, runID)
	log = logger.WithTraceContext(ctx, log)

	started := e.clock()
	summary := &Summary{RunID: runID, Errors: []string{}, DryRun: opts.DryRun, StartedAt: started}
	now := started.In(e.opts.Location)

	var sweepErr error
	for _, s := range e.sweeps() {
		if err := e.runSweep(ctx, s, now, opts, summary, log); err != nil {
			sweepErr = errors.Join(sweepErr, fmt.Errorf("%s sweep: %w", s.name, err))
		}
	}

	summary.FinishedAt = e.clock()
	e.metrics.RecordRun(ctx, "alerts", summary.FinishedAt.Sub(started), sweepErr != nil)
	log.Info("Alert run finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("insurer_response", summary.InsurerResponse),
		zap.Int("custodian", summary.Custodian),
		zap.Int("documentation", summary.Documentation),
		zap.Int("deposit", summary.Deposit),
		zap.Int("delivered", summary.Delivered),
		zap.Int("delivery_failed", summary.DeliveryFailed),
		zap.Int("errors", len(summary.Errors)),
	)

	if sweepErr != nil {
		telemetry.RecordError(span, sweepErr)
		return summary, sweepErr
	}
	telemetry.SetOK(span)
	return summary, nil
}

func (e *Evaluator) runSweep(ctx context.Context, s sweep, now time.Time, opts RunOptions, summary *Summary, log *zap.Logger) error {
	cases, err := s.find(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s sweep: %v", s.name, err))
		return err
	}

	for _, c := range cases {
		if !c.State.IsOpen() || !s.eligible(c, now) {
			continue
		}

		created, err := e.alertCase(ctx, s, c, now, opts.DryRun)
		if err != nil {
			summary.addError(c, err)
			log.Warn("Alert evaluation failed for case",
				zap.String("sweep", s.name),
				zap.String("case_number", c.Number),
				zap.Error(err),
			)
			continue
		}
		if !created.raised {
			continue
		}

		*s.count(summary)++
		if opts.DryRun {
			continue
		}
		e.metrics.RecordAlert(ctx, string(s.category), len(created.notifications))

		report := e.dispatcher.DeliverAll(ctx, created.notifications)
		summary.Delivered += report.Sent
		summary.DeliveryFailed += report.Failed
		for _, derr := range report.Errors {
			summary.addError(c, derr)
		}
	}
	return nil
}

type alertResult struct {
	raised        bool
	notifications []*notification.Notification
}

// alertCase creates the notifications for one case under the alert lock.
// In dry-run mode it answers whether it would have.
func (e *Evaluator) alertCase(ctx context.Context, s sweep, c *claim.Case, now time.Time, dryRun bool) (alertResult, error) {
	policy, err := e.policy(ctx, c)
	if err != nil {
		return alertResult{}, err
	}

	deliveries := e.registry.Plan(s.category, s.contact(c, policy))
	if len(deliveries) == 0 {
		logger.FromContext(ctx).Debug("No reachable recipient, skipping case",
			zap.String("sweep", s.name),
			zap.String("case_number", c.Number),
		)
		return alertResult{}, nil
	}

	if dryRun {
		if s.window == 0 {
			return alertResult{raised: true}, nil
		}
		exists, err := e.notifications.ExistsSince(ctx, c.ID, s.category, now.Add(-s.window))
		if err != nil {
			return alertResult{}, err
		}
		return alertResult{raised: !exists}, nil
	}

	msg := Render(s.category, c, policy, now)
	var result alertResult

	err = e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		result = alertResult{}
		if err := repos.CaseRepo().LockForAlert(ctx, c.ID); err != nil {
			return fmt.Errorf("lock case: %w", err)
		}

		if s.window > 0 {
			exists, err := repos.NotificationRepo().ExistsSince(ctx, c.ID, s.category, now.Add(-s.window))
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
		} else {
			marked, err := s.mark(ctx, repos.CaseRepo(), c, now)
			if err != nil {
				return err
			}
			if !marked {
				return nil
			}
		}

		for _, d := range deliveries {
			n, err := notification.NewNotification(s.category, d.Channel, d.Recipient, msg, now)
			if err != nil {
				return err
			}
			caseID := c.ID
			n.CaseID = &caseID
			n.PolicyID = c.PolicyID
			if err := repos.NotificationRepo().Create(ctx, n); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}
			result.notifications = append(result.notifications, n)
		}
		result.raised = true
		return nil
	})
	if err != nil {
		return alertResult{}, err
	}
	return result, nil
}

func (e *Evaluator) policy(ctx context.Context, c *claim.Case) (*claim.Policy, error) {
	if c.PolicyID == nil || e.policies == nil {
		return nil, nil
	}
	p, err := e.policies.FindByID(ctx, *c.PolicyID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return p, nil
}
