package alerting

import (
	"context"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
)

// TransactionScope runs fn inside one database transaction. The
// repositories handed to fn are bound to that transaction; fn returning an
// error rolls everything back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories usable inside a scope
type TransactionalRepositories interface {
	CaseRepo() claim.CaseRepository
	NotificationRepo() notification.Repository
}
