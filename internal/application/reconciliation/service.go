// Package reconciliation reads the shared mailbox and applies what it finds
// to the matching cases.
package reconciliation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/claimsync/backend/internal/infrastructure/logger"
	"github.com/claimsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the service
type Options struct {
	BrokerKeywords  []string
	ReceiptKeywords []string
	Limit           int           // per pipeline, default 50
	LeaseTTL        time.Duration // default 5m
	DocumentPrefix  string        // default "receipts"
}

// RunOptions configures a single run. A positive Limit overrides Options.Limit.
type RunOptions struct {
	Limit int
}

// Service runs the broker-response and receipt pipelines over the mailbox
type Service struct {
	session   correspondence.MailboxSession
	broker    correspondence.Extractor
	receipt   correspondence.Extractor
	resolver  *Resolver
	cases     claim.CaseRepository
	documents correspondence.DocumentStore
	leases    correspondence.LeaseStore
	metrics   *telemetry.RunMetrics
	opts      Options
	clock     shared.Clock
	logger    *zap.Logger
}

// NewService creates a new Service
func NewService(
	session correspondence.MailboxSession,
	broker correspondence.Extractor,
	receipt correspondence.Extractor,
	cases claim.CaseRepository,
	documents correspondence.DocumentStore,
	leases correspondence.LeaseStore,
	metrics *telemetry.RunMetrics,
	opts Options,
	clock shared.Clock,
	logger *zap.Logger,
) *Service {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 5 * time.Minute
	}
	if opts.DocumentPrefix == "" {
		opts.DocumentPrefix = "receipts"
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{
		session:   session,
		broker:    broker,
		receipt:   receipt,
		resolver:  NewResolver(cases),
		cases:     cases,
		documents: documents,
		leases:    leases,
		metrics:   metrics,
		opts:      opts,
		clock:     clock,
		logger:    logger,
	}
}

type pipeline struct {
	kind      Kind
	keywords  []string
	extractor correspondence.Extractor
}

// Run processes unread broker responses, then unread receipts. Each message
// goes through fetch, extract, resolve, guarded write and mark-read before
// the next one starts. A mailbox connection failure ends the run: it is
// recorded in Summary.Fatal and returned.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "run")
	defer span.End()

	runID := logger.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, log := logger.WithRunID(ctx, s.logger, runID)
	log = logger.WithTraceContext(ctx, log)

	limit := s.opts.Limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	summary := &Summary{RunID: runID, StartedAt: s.clock(), Details: []Detail{}}
	fatal := s.run(ctx, limit, summary, log)
	summary.FinishedAt = s.clock()

	s.metrics.RecordRun(ctx, "reconciliation", summary.FinishedAt.Sub(summary.StartedAt), fatal != nil)
	log.Info("Reconciliation run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("matched", summary.Matched),
		zap.Int("applied", summary.Applied),
		zap.Int("errors", summary.Errors),
		zap.Bool("fatal", fatal != nil),
	)

	if fatal != nil {
		summary.Fatal = fatal.Error()
		telemetry.RecordError(span, fatal)
		return summary, fatal
	}
	telemetry.SetOK(span)
	return summary, nil
}

func (s *Service) run(ctx context.Context, limit int, summary *Summary, log *zap.Logger) error {
	if err := s.session.Connect(ctx); err != nil {
		_ = s.session.Disconnect()
		return err
	}
	defer func() {
		if err := s.session.Disconnect(); err != nil {
			log.Warn("Mailbox disconnect failed", zap.Error(err))
		}
	}()

	for _, p := range []pipeline{
		{kind: KindBrokerResponse, keywords: s.opts.BrokerKeywords, extractor: s.broker},
		{kind: KindReceipt, keywords: s.opts.ReceiptKeywords, extractor: s.receipt},
	} {
		if err := s.runPipeline(ctx, p, limit, summary, log); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runPipeline(ctx context.Context, p pipeline, limit int, summary *Summary, log *zap.Logger) error {
	criteria := correspondence.Criteria{
		SubjectKeywords: p.keywords,
		UnreadOnly:      true,
		Limit:           limit,
	}

	handled := 0
	for uid, err := range s.session.Search(ctx, criteria) {
		if err != nil {
			if correspondence.IsConnectionError(err) {
				return err
			}
			return fmt.Errorf("search %s messages: %w", p.kind, err)
		}
		if handled >= limit {
			break
		}
		handled++

		res, fatal := s.processItem(ctx, p, uid, log)
		summary.record(res.detail, res.matched)
		s.metrics.RecordItem(ctx, string(p.kind), string(res.detail.Outcome))
		if fatal != nil {
			return fatal
		}
	}
	return nil
}

type itemResult struct {
	detail  Detail
	matched bool
}

// processItem runs one message through the pipeline. A panic is recovered
// and reported as failed. fatal is only set for connection failures.
func (s *Service) processItem(ctx context.Context, p pipeline, uid uint32, log *zap.Logger) (res itemResult, fatal error) {
	res.detail = Detail{ItemID: "uid:" + strconv.FormatUint(uint64(uid), 10), Kind: p.kind}

	ctx, span := telemetry.StartSpan(ctx, "reconciliation.item",
		telemetry.SpanAttrItemKind, string(p.kind))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res.detail.Outcome = OutcomeFailed
			res.detail.Message = fmt.Sprintf("panic: %v", r)
			fatal = nil
			log.Error("Recovered panic while processing mailbox item",
				zap.String("item_id", res.detail.ItemID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		telemetry.SetAttributes(span,
			telemetry.SpanAttrItemID, res.detail.ItemID,
			telemetry.SpanAttrOutcome, string(res.detail.Outcome),
		)
	}()

	leaseKey := fmt.Sprintf("claimsync:lease:%s:%d", p.kind, uid)
	acquired, err := s.leases.Acquire(ctx, leaseKey, s.opts.LeaseTTL)
	if err != nil {
		res.detail.Outcome, res.detail.Message = OutcomeFailed, fmt.Sprintf("acquire lease: %v", err)
		return res, nil
	}
	if !acquired {
		res.detail.Outcome, res.detail.Message = OutcomeInFlight, "another run is processing this message"
		return res, nil
	}
	defer func() {
		if err := s.leases.Release(context.WithoutCancel(ctx), leaseKey); err != nil {
			log.Warn("Lease release failed", zap.String("key", leaseKey), zap.Error(err))
		}
	}()

	msg, err := s.session.Fetch(ctx, uid)
	if err != nil {
		if correspondence.IsConnectionError(err) {
			res.detail.Outcome, res.detail.Message = OutcomeFailed, err.Error()
			return res, err
		}
		var malformed *correspondence.MalformedError
		if errors.As(err, &malformed) {
			res.detail.Outcome, res.detail.Message = OutcomeMalformed, err.Error()
			return res, nil
		}
		res.detail.Outcome, res.detail.Message = OutcomeFailed, fmt.Sprintf("fetch: %v", err)
		return res, nil
	}
	if msg.MessageID != "" {
		res.detail.ItemID = msg.MessageID
	}

	fact, err := p.extractor.Extract(ctx, msg)
	if err != nil {
		res.detail.Outcome, res.detail.Message = extractionOutcome(err), err.Error()
		return res, nil
	}

	c, err := s.resolver.Resolve(ctx, fact)
	if err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			res.detail.Outcome = OutcomeNotFound
		} else {
			res.detail.Outcome = OutcomeFailed
		}
		res.detail.Message = err.Error()
		return res, nil
	}
	res.matched = true
	res.detail.CaseNumber = c.Number

	if err := s.apply(ctx, fact, c, msg); err != nil {
		res.detail.Outcome, res.detail.Message = transitionOutcome(err), err.Error()
		return res, nil
	}
	res.detail.Outcome = OutcomeApplied
	res.detail.Message = fmt.Sprintf("case moved to %s", c.State)

	if err := s.session.MarkRead(ctx, uid); err != nil {
		res.detail.Message += fmt.Sprintf("; mark read failed: %v", err)
		if correspondence.IsConnectionError(err) {
			return res, err
		}
		log.Warn("Mark read failed after applying message",
			zap.String("item_id", res.detail.ItemID),
			zap.String("case_number", c.Number),
			zap.Error(err),
		)
	}

	log.Info("Correspondence applied",
		zap.String("item_id", res.detail.ItemID),
		zap.String("kind", string(p.kind)),
		zap.String("case_number", c.Number),
		zap.String("state", string(c.State)),
	)
	return res, nil
}

// apply runs the named transition for fact and writes it under the state guard
func (s *Service) apply(ctx context.Context, fact correspondence.Fact, c *claim.Case, msg *correspondence.RawMessage) error {
	now := s.clock()

	switch f := fact.(type) {
	case correspondence.BrokerResponseFact:
		change, err := c.ApplyBrokerResponse(msg.From, now)
		if err != nil {
			return err
		}
		return s.cases.SaveTransition(ctx, c, change)

	case correspondence.ReceiptFact:
		if !c.State.CanTransitionTo(claim.StateReceiptReceived) {
			_, err := c.ApplyReceipt(claim.Receipt{}, now)
			return err
		}
		key := s.documentKey(c.Number, msg)
		if err := s.documents.Put(ctx, key, bytes.NewReader(f.Document.Data), int64(len(f.Document.Data)), "application/pdf"); err != nil {
			return fmt.Errorf("store receipt document: %w", err)
		}

		change, err := c.ApplyReceipt(claim.Receipt{
			DocumentKey:               key,
			Sender:                    msg.From,
			NetIndemnification:        f.NetAmount,
			GrossLoss:                 f.GrossLoss,
			Deductible:                f.Deductible,
			Depreciation:              f.Depreciation,
			NetLossBeforeDepreciation: f.NetLossBeforeDepreciation,
		}, now)
		if err == nil {
			err = s.cases.SaveTransition(ctx, c, change)
		}
		if err != nil {
			if derr := s.documents.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.logger.Warn("Orphaned receipt document", zap.String("key", key), zap.Error(derr))
			}
			return err
		}
		return nil

	default:
		panic(fmt.Sprintf("reconciliation: unhandled fact type %T", fact))
	}
}

// documentKey is <prefix>/<case number>/<message-id hash>.pdf
func (s *Service) documentKey(caseNumber string, msg *correspondence.RawMessage) string {
	id := msg.MessageID
	if id == "" {
		id = fmt.Sprintf("uid-%d-%s", msg.UID, msg.Date.UTC().Format(time.RFC3339))
	}
	sum := sha256.Sum256([]byte(id))
	return path.Join(s.opts.DocumentPrefix, caseNumber, hex.EncodeToString(sum[:16])+".pdf")
}

func extractionOutcome(err error) Outcome {
	var malformed *correspondence.MalformedError
	switch {
	case errors.Is(err, correspondence.ErrNotApplicable):
		return OutcomeNotApplicable
	case errors.As(err, &malformed):
		return OutcomeMalformed
	default:
		return OutcomeFailed
	}
}

func transitionOutcome(err error) Outcome {
	if errors.Is(err, shared.ErrWrongState) || errors.Is(err, shared.ErrConcurrencyConflict) {
		return OutcomeWrongState
	}
	return OutcomeFailed
}
