package persistence

import (
	"context"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
	"gorm.io/gorm"
)

// GormTransactionScope implements alerting.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos alerting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// CaseRepo returns the case repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CaseRepo() claim.CaseRepository {
	return NewGormCaseRepository(r.tx)
}

// NotificationRepo returns the notification repository scoped to the current transaction.
func (r *gormTransactionalRepositories) NotificationRepo() notification.Repository {
	return NewGormNotificationRepository(r.tx)
}

var (
	_ alerting.TransactionScope          = (*GormTransactionScope)(nil)
	_ alerting.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
