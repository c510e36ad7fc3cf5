package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCaseRepository is a mock implementation of claim.CaseRepository
type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) caseResult(args mock.Arguments) (*claim.Case, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*claim.Case), args.Error(1)
}

func (m *MockCaseRepository) casesResult(args mock.Arguments) ([]*claim.Case, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*claim.Case), args.Error(1)
}

func (m *MockCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*claim.Case, error) {
	return m.caseResult(m.Called(ctx, id))
}

func (m *MockCaseRepository) FindByNumber(ctx context.Context, number string) (*claim.Case, error) {
	return m.caseResult(m.Called(ctx, number))
}

func (m *MockCaseRepository) FindBySerialInState(ctx context.Context, serial string, state claim.State) (*claim.Case, error) {
	return m.caseResult(m.Called(ctx, serial, state))
}

func (m *MockCaseRepository) FindByAssetCodeInState(ctx context.Context, code string, state claim.State) (*claim.Case, error) {
	return m.caseResult(m.Called(ctx, code, state))
}

func (m *MockCaseRepository) FindAwaitingInsurerResponse(ctx context.Context) ([]*claim.Case, error) {
	return m.casesResult(m.Called(ctx))
}

func (m *MockCaseRepository) FindWithoutCustodianNotice(ctx context.Context, states []claim.State) ([]*claim.Case, error) {
	return m.casesResult(m.Called(ctx, states))
}

func (m *MockCaseRepository) FindInState(ctx context.Context, state claim.State) ([]*claim.Case, error) {
	return m.casesResult(m.Called(ctx, state))
}

func (m *MockCaseRepository) FindDepositPending(ctx context.Context) ([]*claim.Case, error) {
	return m.casesResult(m.Called(ctx))
}

func (m *MockCaseRepository) Create(ctx context.Context, c *claim.Case) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCaseRepository) SaveTransition(ctx context.Context, c *claim.Case, change claim.StateChange) error {
	return m.Called(ctx, c, change).Error(0)
}

func (m *MockCaseRepository) LockForAlert(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCaseRepository) MarkCustodianNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCaseRepository) MarkDocumentationReminded(ctx context.Context, id uuid.UUID, day time.Time) (bool, error) {
	args := m.Called(ctx, id, day)
	return args.Bool(0), args.Error(1)
}

func mustCase(t *testing.T, number string) *claim.Case {
	c, err := claim.NewCase(number, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func TestResolver_BrokerResponse(t *testing.T) {
	repo := new(MockCaseRepository)
	want := mustCase(t, "SIN-2026-0001")
	repo.On("FindByNumber", mock.Anything, "SIN-2026-0001").Return(want, nil)
	repo.On("FindByNumber", mock.Anything, "SIN-2026-9999").Return(nil, shared.ErrNotFound)

	r := NewResolver(repo)

	got, err := r.Resolve(context.Background(), correspondence.BrokerResponseFact{CaseNumber: "SIN-2026-0001"})
	require.NoError(t, err)
	assert.Same(t, want, got)

	_, err = r.Resolve(context.Background(), correspondence.BrokerResponseFact{CaseNumber: "SIN-2026-9999"})
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestResolver_ReceiptPrecedence(t *testing.T) {
	fact := correspondence.ReceiptFact{ClaimNumber: "651147", Serial: "ABC12345", AssetCode: "10020030"}

	t.Run("claim number wins over serial and asset code", func(t *testing.T) {
		repo := new(MockCaseRepository)
		byNumber := mustCase(t, "651147")
		repo.On("FindByNumber", mock.Anything, "651147").Return(byNumber, nil)

		got, err := NewResolver(repo).Resolve(context.Background(), fact)

		require.NoError(t, err)
		assert.Same(t, byNumber, got)
		repo.AssertNotCalled(t, "FindBySerialInState", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "FindByAssetCodeInState", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("serial wins over asset code", func(t *testing.T) {
		repo := new(MockCaseRepository)
		bySerial := mustCase(t, "SIN-2026-0100")
		repo.On("FindByNumber", mock.Anything, "651147").Return(nil, shared.ErrNotFound)
		repo.On("FindBySerialInState", mock.Anything, "ABC12345", claim.StateSentToInsurer).Return(bySerial, nil)

		got, err := NewResolver(repo).Resolve(context.Background(), fact)

		require.NoError(t, err)
		assert.Same(t, bySerial, got)
		repo.AssertNotCalled(t, "FindByAssetCodeInState", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("asset code is the last key", func(t *testing.T) {
		repo := new(MockCaseRepository)
		byCode := mustCase(t, "SIN-2026-0200")
		repo.On("FindByNumber", mock.Anything, "651147").Return(nil, shared.ErrNotFound)
		repo.On("FindBySerialInState", mock.Anything, "ABC12345", claim.StateSentToInsurer).Return(nil, shared.ErrNotFound)
		repo.On("FindByAssetCodeInState", mock.Anything, "10020030", claim.StateSentToInsurer).Return(byCode, nil)

		got, err := NewResolver(repo).Resolve(context.Background(), fact)

		require.NoError(t, err)
		assert.Same(t, byCode, got)
	})

	t.Run("no key matches", func(t *testing.T) {
		repo := new(MockCaseRepository)
		repo.On("FindBySerialInState", mock.Anything, "ABC12345", claim.StateSentToInsurer).Return(nil, shared.ErrNotFound)

		_, err := NewResolver(repo).Resolve(context.Background(), correspondence.ReceiptFact{Serial: "ABC12345"})

		assert.ErrorIs(t, err, ErrCaseNotFound)
		repo.AssertNotCalled(t, "FindByNumber", mock.Anything, mock.Anything)
	})

	t.Run("store failure is not a miss", func(t *testing.T) {
		repo := new(MockCaseRepository)
		repo.On("FindByNumber", mock.Anything, "651147").Return(nil, errors.New("connection reset"))

		_, err := NewResolver(repo).Resolve(context.Background(), fact)

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCaseNotFound)
	})
}
