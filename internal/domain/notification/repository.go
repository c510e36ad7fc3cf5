package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for notifications
type Repository interface {
	Create(ctx context.Context, n *Notification) error

	// FindByID returns shared.ErrNotFound when the id is unknown
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)

	// ExistsSince reports whether a notification of category was created for
	// the case at or after since
	ExistsSince(ctx context.Context, caseID uuid.UUID, category Category, since time.Time) (bool, error)

	// UpdateDelivery writes the delivery fields only while the stored status
	// is still from; otherwise shared.ErrConcurrencyConflict is returned
	UpdateDelivery(ctx context.Context, n *Notification, from Status) error
}
