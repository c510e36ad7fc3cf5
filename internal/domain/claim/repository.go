package claim

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CaseRepository defines persistence operations for cases.
// Lookups return shared.ErrNotFound when nothing matches.
type CaseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Case, error)
	FindByNumber(ctx context.Context, number string) (*Case, error)

	// FindBySerialInState finds the most recently registered case whose asset
	// has the given serial number and that is currently in state.
	FindBySerialInState(ctx context.Context, serial string, state State) (*Case, error)

	// FindByAssetCodeInState is FindBySerialInState keyed by asset code.
	FindByAssetCodeInState(ctx context.Context, code string, state State) (*Case, error)

	FindAwaitingInsurerResponse(ctx context.Context) ([]*Case, error)
	FindWithoutCustodianNotice(ctx context.Context, states []State) ([]*Case, error)
	FindInState(ctx context.Context, state State) ([]*Case, error)
	FindDepositPending(ctx context.Context) ([]*Case, error)

	// Create inserts a new case
	Create(ctx context.Context, c *Case) error

	// SaveTransition persists the result of a named transition. The write
	// only happens while the row still holds change.Previous at the loaded
	// version; otherwise shared.ErrConcurrencyConflict is returned.
	SaveTransition(ctx context.Context, c *Case, change StateChange) error

	// LockForAlert takes a row lock on the case for the current transaction
	LockForAlert(ctx context.Context, id uuid.UUID) error

	// MarkCustodianNotified sets the custodian timestamp if it is still unset
	MarkCustodianNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// MarkDocumentationReminded records day as the last reminder day unless it already is
	MarkDocumentationReminded(ctx context.Context, id uuid.UUID, day time.Time) (bool, error)
}

// AssetRepository defines persistence operations for assets
type AssetRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Asset, error)
	Create(ctx context.Context, a *Asset) error
}

// PolicyRepository defines persistence operations for policies
type PolicyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	Create(ctx context.Context, p *Policy) error
}
