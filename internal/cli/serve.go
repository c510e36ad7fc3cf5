package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/application/reconciliation"
	"github.com/claimsync/backend/internal/infrastructure/scheduler"
	"github.com/claimsync/backend/internal/interfaces/http/handler"
	"github.com/claimsync/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops API and the scheduled runs",
		Long: `Serve exposes the ops API and, when scheduler.enabled is set, runs
reconciliation every scheduler.reconcile_interval and alerts once a day at
scheduler.alerts_hour. API-triggered and scheduled runs of the same job never
overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := bootstrap(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			return serve(ctx, a, version)
		},
	}
}

func serve(ctx context.Context, a *app, version string) error {
	cfg, log := a.cfg, a.log

	evaluator, err := a.evaluator()
	if err != nil {
		return err
	}
	reconciler, err := a.reconciler(ctx)
	if err != nil {
		return err
	}

	trigger, err := scheduler.NewTrigger(triggerConfig(a), scheduledReconcile(reconciler, log), scheduledAlerts(evaluator, log), log)
	if err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		if err := trigger.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Warn("Scheduler did not stop cleanly", zap.Error(err))
			}
		}()
	}

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Mode:           mode,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log)
	if err != nil {
		return err
	}

	sqlDB, err := a.db.DB.DB()
	if err != nil {
		return err
	}
	engine.GET("/healthz", handler.NewHealthHandler(sqlDB, version).Healthz)
	router.NewRouter(engine).
		Register(handler.NewRunHandler(reconciler, evaluator, trigger)).
		Register(handler.NewNotificationHandler(a.dispatcher)).
		Register(handler.NewCaseHandler(a.caseService())).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if stats, err := a.db.Stats(); err == nil {
		log.Info("Database pool at shutdown",
			zap.Int("open", stats.OpenConnections),
			zap.Int64("wait_count", stats.WaitCount),
			zap.Duration("wait_duration", stats.WaitDuration))
	}
	log.Info("Server exited gracefully")
	return nil
}

func triggerConfig(a *app) scheduler.Config {
	sc := scheduler.DefaultConfig()
	if a.cfg.Scheduler.ReconcileInterval > 0 {
		sc.ReconcileInterval = a.cfg.Scheduler.ReconcileInterval
	}
	sc.AlertsHour = a.cfg.Scheduler.AlertsHour
	if a.cfg.Scheduler.JobTimeout > 0 {
		sc.JobTimeout = a.cfg.Scheduler.JobTimeout
	}
	if loc, err := a.cfg.Alerts.Location(); err == nil {
		sc.Location = loc
	}
	return sc
}

func scheduledReconcile(svc *reconciliation.Service, log *zap.Logger) scheduler.JobFunc {
	return func(ctx context.Context) error {
		summary, err := svc.Run(ctx, reconciliation.RunOptions{})
		if summary != nil {
			log.Info("Scheduled reconciliation",
				zap.String("run_id", summary.RunID),
				zap.Int("processed", summary.Processed),
				zap.Int("applied", summary.Applied),
				zap.Int("errors", summary.Errors))
		}
		return err
	}
}

func scheduledAlerts(evaluator *alerting.Evaluator, log *zap.Logger) scheduler.JobFunc {
	return func(ctx context.Context) error {
		summary, err := evaluator.Run(ctx, alerting.RunOptions{})
		if summary != nil {
			log.Info("Scheduled alerts",
				zap.String("run_id", summary.RunID),
				zap.Int("alerted", summary.Total()),
				zap.Int("delivery_failed", summary.DeliveryFailed))
		}
		return err
	}
}
