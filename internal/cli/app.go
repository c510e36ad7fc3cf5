package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/application/casemgmt"
	"github.com/claimsync/backend/internal/application/notifying"
	"github.com/claimsync/backend/internal/application/reconciliation"
	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/cache"
	"github.com/claimsync/backend/internal/infrastructure/channel"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"github.com/claimsync/backend/internal/infrastructure/extraction"
	"github.com/claimsync/backend/internal/infrastructure/extraction/pdftext"
	"github.com/claimsync/backend/internal/infrastructure/logger"
	"github.com/claimsync/backend/internal/infrastructure/mailbox"
	"github.com/claimsync/backend/internal/infrastructure/persistence"
	"github.com/claimsync/backend/internal/infrastructure/storage"
	"github.com/claimsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// app holds the process-wide dependencies of a command
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	providers *telemetry.Providers
	db        *persistence.Database

	cases         claim.CaseRepository
	policies      claim.PolicyRepository
	notifications notification.Repository
	registry      *notification.Registry
	metrics       *telemetry.RunMetrics
	dispatcher    *notifying.Dispatcher

	closers []io.Closer
}

// bootstrap loads configuration and opens logging, telemetry, the database
// and the notification channels. The caller must call close.
func bootstrap(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return nil, err
	}

	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	base, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, base)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	log, err := logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: log, providers: providers}

	a.db, err = persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if cfg.Database.Driver == "sqlite" {
		if err := a.db.AutoMigrate(); err != nil {
			a.close(ctx)
			return nil, err
		}
	}
	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracing(cfg.Telemetry, cfg.Database.Driver), log)
	if err := plugin.Register(a.db.DB); err != nil {
		a.close(ctx)
		return nil, err
	}

	a.cases = persistence.NewGormCaseRepository(a.db.DB)
	a.policies = persistence.NewGormPolicyRepository(a.db.DB)
	a.notifications = persistence.NewGormNotificationRepository(a.db.DB)

	a.registry, err = channel.BuildRegistry(cfg.Channels, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.metrics, err = telemetry.NewRunMetrics(providers.Meter())
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.dispatcher = notifying.NewDispatcher(a.notifications, a.cases, a.registry, a.metrics, nil, log)
	return a, nil
}

// evaluator wires the alert evaluator
func (a *app) evaluator() (*alerting.Evaluator, error) {
	loc, err := a.cfg.Alerts.Location()
	if err != nil {
		return nil, err
	}
	return alerting.NewEvaluator(
		a.cases, a.policies, a.notifications,
		persistence.NewGormTransactionScope(a.db.DB),
		a.registry, a.dispatcher, a.metrics,
		alerting.Options{
			Location:              loc,
			InsurerResponseWindow: a.cfg.Alerts.InsurerResponseWindow,
			DepositWindow:         a.cfg.Alerts.DepositWindow,
		},
		nil, a.log,
	), nil
}

// reconciler wires the reconciliation service with its own mailbox
// session, lease store and document store
func (a *app) reconciler(ctx context.Context) (*reconciliation.Service, error) {
	if err := a.cfg.Mailbox.Validate(); err != nil {
		return nil, err
	}

	leases, closer, err := cache.NewLeaseStore(ctx, a.cfg.Reconciliation.LeaseBackend, a.cfg.Redis, a.log)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	documents, err := storage.NewDocumentStore(ctx, a.cfg.Storage, a.log)
	if err != nil {
		return nil, err
	}

	rc := a.cfg.Reconciliation
	return reconciliation.NewService(
		mailbox.NewSession(a.cfg.Mailbox, a.log),
		extraction.NewBrokerResponseExtractor(),
		extraction.NewReceiptExtractor(pdftext.NewSource()),
		a.cases, documents, leases, a.metrics,
		reconciliation.Options{
			BrokerKeywords:  rc.BrokerKeywords,
			ReceiptKeywords: rc.ReceiptKeywords,
			Limit:           rc.Limit,
			LeaseTTL:        rc.LeaseTTL,
			DocumentPrefix:  rc.DocumentPrefix,
		},
		nil, a.log,
	), nil
}

// caseService wires operator transitions
func (a *app) caseService() *casemgmt.Service {
	return casemgmt.NewService(a.cases, a.policies, a.notifications, a.registry, a.dispatcher, nil, a.log)
}

// close releases everything bootstrap and the wiring helpers opened
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.providers != nil {
		errs = append(errs, a.providers.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Shutdown incomplete", zap.Error(err))
	}
	_ = a.log.Sync()
}
