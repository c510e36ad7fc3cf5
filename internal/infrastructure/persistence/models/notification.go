package models

import (
	"time"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/google/uuid"
)

// NotificationModel is the persistence model for notifications
type NotificationModel struct {
	ID          uuid.UUID             `gorm:"type:uuid;primaryKey"`
	Category    notification.Category `gorm:"type:varchar(40);not null;index:idx_notifications_case_category,priority:2"`
	Channel     string                `gorm:"type:varchar(30);not null"`
	Recipient   string                `gorm:"type:varchar(200);not null"`
	Subject     string                `gorm:"type:varchar(300);not null"`
	Body        string                `gorm:"type:text;not null"`
	CaseID      *uuid.UUID            `gorm:"type:uuid;index:idx_notifications_case_category,priority:1"`
	PolicyID    *uuid.UUID            `gorm:"type:uuid"`
	Status      notification.Status   `gorm:"type:varchar(20);not null;default:'pending';index"`
	ErrorDetail string                `gorm:"type:text"`
	Attempts    int                   `gorm:"not null;default:0"`
	SentAt      *time.Time
	CreatedAt   time.Time `gorm:"not null;index:idx_notifications_case_category,priority:3"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the model to a domain Notification
func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		ID:          m.ID,
		Category:    m.Category,
		Channel:     m.Channel,
		Recipient:   m.Recipient,
		Subject:     m.Subject,
		Body:        m.Body,
		CaseID:      m.CaseID,
		PolicyID:    m.PolicyID,
		Status:      m.Status,
		ErrorDetail: m.ErrorDetail,
		Attempts:    m.Attempts,
		SentAt:      m.SentAt,
		CreatedAt:   m.CreatedAt,
	}
}

// FromDomain populates the model from a domain Notification
func (m *NotificationModel) FromDomain(n *notification.Notification) {
	m.ID = n.ID
	m.Category = n.Category
	m.Channel = n.Channel
	m.Recipient = n.Recipient
	m.Subject = n.Subject
	m.Body = n.Body
	m.CaseID = n.CaseID
	m.PolicyID = n.PolicyID
	m.Status = n.Status
	m.ErrorDetail = n.ErrorDetail
	m.Attempts = n.Attempts
	m.SentAt = utc(n.SentAt)
	m.CreatedAt = n.CreatedAt.UTC()
}

// AllModels lists every model, in dependency order, for AutoMigrate
func AllModels() []any {
	return []any{
		&AssetModel{},
		&PolicyModel{},
		&CaseModel{},
		&NotificationModel{},
	}
}
