package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/application/reconciliation"
	"github.com/claimsync/backend/internal/infrastructure/scheduler"
	"github.com/claimsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReconciliationRunner runs one reconciliation pass
type ReconciliationRunner interface {
	Run(ctx context.Context, opts reconciliation.RunOptions) (*reconciliation.Summary, error)
}

// AlertRunner runs one alert evaluation pass
type AlertRunner interface {
	Run(ctx context.Context, opts alerting.RunOptions) (*alerting.Summary, error)
}

// Guard serializes runs of the same job across the API and the scheduler.
// It returns scheduler.ErrAlreadyRunning when the job is already active.
type Guard interface {
	Run(ctx context.Context, name string, job scheduler.JobFunc) error
}

// RunHandler triggers bounded runs on demand
type RunHandler struct {
	BaseHandler
	reconciler ReconciliationRunner
	alerts     AlertRunner
	guard      Guard
}

// NewRunHandler creates a new RunHandler. guard may be nil.
func NewRunHandler(reconciler ReconciliationRunner, alerts AlertRunner, guard Guard) *RunHandler {
	return &RunHandler{reconciler: reconciler, alerts: alerts, guard: guard}
}

func (h *RunHandler) guarded(ctx context.Context, name string, job scheduler.JobFunc) error {
	if h.guard == nil {
		return job(ctx)
	}
	return h.guard.Run(ctx, name, job)
}

// RunReconciliation handles POST /runs/reconciliation. A fatal run still
// answers with its summary, under 502.
func (h *RunHandler) RunReconciliation(c *gin.Context) {
	var req dto.ReconciliationRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, err.Error())
		return
	}

	var summary *reconciliation.Summary
	err := h.guarded(c.Request.Context(), "reconcile", func(ctx context.Context) error {
		var runErr error
		summary, runErr = h.reconciler.Run(ctx, reconciliation.RunOptions{Limit: req.Limit})
		return runErr
	})
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		h.Error(c, http.StatusConflict, dto.ErrCodeRunInProgress, "A reconciliation run is already in progress")
	case err != nil && summary != nil:
		c.JSON(http.StatusBadGateway, dto.Response{
			Success: false,
			Data:    summary,
			Error:   &dto.ErrorInfo{Code: dto.ErrCodeMailboxUnavailable, Message: err.Error(), RequestID: requestID(c)},
		})
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Success(c, summary)
	}
}

// RunAlerts handles POST /runs/alerts
func (h *RunHandler) RunAlerts(c *gin.Context) {
	var req dto.AlertRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, err.Error())
		return
	}

	var summary *alerting.Summary
	err := h.guarded(c.Request.Context(), "alerts", func(ctx context.Context) error {
		var runErr error
		summary, runErr = h.alerts.Run(ctx, alerting.RunOptions{DryRun: req.DryRun})
		return runErr
	})
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		h.Error(c, http.StatusConflict, dto.ErrCodeRunInProgress, "An alert run is already in progress")
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Success(c, summary)
	}
}

// RegisterRoutes registers the run routes
func (h *RunHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/runs")
	runs.POST("/reconciliation", h.RunReconciliation)
	runs.POST("/alerts", h.RunAlerts)
}
