package handler

import (
	"context"
	"time"

	"github.com/claimsync/backend/internal/application/casemgmt"
	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CaseTransitioner applies named transitions
type CaseTransitioner interface {
	Apply(ctx context.Context, number, name string) (*casemgmt.Result, error)
}

// TransitionResponse reports an applied transition
type TransitionResponse struct {
	CaseNumber    string                 `json:"case_number"`
	Transition    string                 `json:"transition"`
	Previous      claim.State            `json:"previous"`
	Current       claim.State            `json:"current"`
	At            time.Time              `json:"at"`
	Version       int                    `json:"version"`
	Notifications []NotificationResponse `json:"notifications,omitempty"`
}

// CaseHandler serves operator actions on cases
type CaseHandler struct {
	BaseHandler
	service CaseTransitioner
}

// NewCaseHandler creates a new CaseHandler
func NewCaseHandler(service CaseTransitioner) *CaseHandler {
	return &CaseHandler{service: service}
}

// Transition handles POST /cases/:number/transitions/:name
func (h *CaseHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Apply(c.Request.Context(), req.Number, req.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := TransitionResponse{
		CaseNumber: result.Case.Number,
		Transition: req.Name,
		Previous:   result.Change.Previous,
		Current:    result.Change.Current,
		At:         result.Change.At,
		Version:    result.Case.Version,
	}
	for _, n := range result.Notifications {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(n))
	}
	h.Success(c, resp)
}

// RegisterRoutes registers the case routes
func (h *CaseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cases/:number/transitions/:name", h.Transition)
}
