package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/domain/shared"
)

// ErrCaseNotFound means no case matches any key of a fact
var ErrCaseNotFound = errors.New("no matching case")

// Resolver finds the case a fact refers to
type Resolver struct {
	cases claim.CaseRepository
}

// NewResolver creates a new Resolver
func NewResolver(cases claim.CaseRepository) *Resolver {
	return &Resolver{cases: cases}
}

// Resolve maps a fact to its case. Receipt keys are tried in order: claim
// number, asset serial, asset code; the asset keys only match cases that
// are waiting on the insurer.
func (r *Resolver) Resolve(ctx context.Context, fact correspondence.Fact) (*claim.Case, error) {
	switch f := fact.(type) {
	case correspondence.BrokerResponseFact:
		c, err := r.lookup(r.cases.FindByNumber(ctx, f.CaseNumber))
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("%w: number %s", ErrCaseNotFound, f.CaseNumber)
		}
		return c, nil

	case correspondence.ReceiptFact:
		return r.resolveReceipt(ctx, f)

	default:
		panic(fmt.Sprintf("reconciliation: unhandled fact type %T", fact))
	}
}

func (r *Resolver) resolveReceipt(ctx context.Context, f correspondence.ReceiptFact) (*claim.Case, error) {
	if f.ClaimNumber != "" {
		c, err := r.lookup(r.cases.FindByNumber(ctx, f.ClaimNumber))
		if err != nil || c != nil {
			return c, err
		}
	}
	if f.Serial != "" {
		c, err := r.lookup(r.cases.FindBySerialInState(ctx, f.Serial, claim.StateSentToInsurer))
		if err != nil || c != nil {
			return c, err
		}
	}
	if f.AssetCode != "" {
		c, err := r.lookup(r.cases.FindByAssetCodeInState(ctx, f.AssetCode, claim.StateSentToInsurer))
		if err != nil || c != nil {
			return c, err
		}
	}
	return nil, fmt.Errorf("%w: claim %q serial %q asset code %q",
		ErrCaseNotFound, f.ClaimNumber, f.Serial, f.AssetCode)
}

// lookup turns shared.ErrNotFound into a nil case so the next key is tried
func (r *Resolver) lookup(c *claim.Case, err error) (*claim.Case, error) {
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}
