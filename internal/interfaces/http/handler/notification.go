package handler

import (
	"context"
	"time"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NotificationService reads and resends notifications
type NotificationService interface {
	Get(ctx context.Context, id uuid.UUID) (*notification.Notification, error)
	Resend(ctx context.Context, id uuid.UUID) (*notification.Notification, error)
}

// NotificationResponse is the API view of a notification
type NotificationResponse struct {
	ID          string                `json:"id"`
	CaseID      *string               `json:"case_id,omitempty"`
	Category    notification.Category `json:"category"`
	Channel     string                `json:"channel"`
	Recipient   string                `json:"recipient"`
	Subject     string                `json:"subject"`
	Status      notification.Status   `json:"status"`
	ErrorDetail string                `json:"error_detail,omitempty"`
	Attempts    int                   `json:"attempts"`
	CreatedAt   time.Time             `json:"created_at"`
	SentAt      *time.Time            `json:"sent_at,omitempty"`
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:          n.ID.String(),
		Category:    n.Category,
		Channel:     n.Channel,
		Recipient:   n.Recipient,
		Subject:     n.Subject,
		Status:      n.Status,
		ErrorDetail: n.ErrorDetail,
		Attempts:    n.Attempts,
		CreatedAt:   n.CreatedAt,
		SentAt:      n.SentAt,
	}
	if n.CaseID != nil {
		id := n.CaseID.String()
		resp.CaseID = &id
	}
	return resp
}

// NotificationHandler serves notification lookups and resends
type NotificationHandler struct {
	BaseHandler
	service NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) bindID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "notification id must be a UUID")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// Get handles GET /notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	n, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toNotificationResponse(n))
}

// Resend handles POST /notifications/:id/resend. The delivery outcome is
// in the returned status; a failed resend is still a 200.
func (h *NotificationHandler) Resend(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	n, err := h.service.Resend(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toNotificationResponse(n))
}

// RegisterRoutes registers the notification routes
func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	notifications.GET("/:id", h.Get)
	notifications.POST("/:id/resend", h.Resend)
}
