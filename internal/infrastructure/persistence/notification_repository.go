package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/claimsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormNotificationRepository implements notification.Repository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create inserts a notification record
func (r *GormNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	model := &models.NotificationModel{}
	model.FromDomain(n)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID finds a notification by its ID
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	var model models.NotificationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsSince reports whether the case has a notification of category created at or after since
func (r *GormNotificationRepository) ExistsSince(ctx context.Context, caseID uuid.UUID, category notification.Category, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("case_id = ? AND category = ? AND created_at >= ?", caseID, category, since.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateDelivery writes status, error detail, attempts and sent_at while the row still has status from
func (r *GormNotificationRepository) UpdateDelivery(ctx context.Context, n *notification.Notification, from notification.Status) error {
	model := &models.NotificationModel{}
	model.FromDomain(n)

	result := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("id = ? AND status = ?", n.ID, from).
		Updates(map[string]any{
			"status":       model.Status,
			"error_detail": model.ErrorDetail,
			"attempts":     model.Attempts,
			"sent_at":      model.SentAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormNotificationRepository implements notification.Repository
var _ notification.Repository = (*GormNotificationRepository)(nil)
