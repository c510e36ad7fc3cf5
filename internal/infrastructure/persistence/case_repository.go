package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/claimsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// dateLayout is how calendar days are bound so both drivers compare them as dates
const dateLayout = "2006-01-02"

// GormCaseRepository implements claim.CaseRepository using GORM
type GormCaseRepository struct {
	db *gorm.DB
}

// NewGormCaseRepository creates a new GormCaseRepository
func NewGormCaseRepository(db *gorm.DB) *GormCaseRepository {
	return &GormCaseRepository{db: db}
}

func (r *GormCaseRepository) first(query *gorm.DB) (*claim.Case, error) {
	var model models.CaseModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormCaseRepository) find(query *gorm.DB) ([]*claim.Case, error) {
	var rows []models.CaseModel
	if err := query.Order("registered_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	cases := make([]*claim.Case, len(rows))
	for i := range rows {
		cases[i] = rows[i].ToDomain()
	}
	return cases, nil
}

// FindByID finds a case by its ID
func (r *GormCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*claim.Case, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByNumber finds a case by its case number
func (r *GormCaseRepository) FindByNumber(ctx context.Context, number string) (*claim.Case, error) {
	return r.first(r.db.WithContext(ctx).Where("number = ?", strings.TrimSpace(number)))
}

// FindBySerialInState finds the newest case in state whose asset has the serial number
func (r *GormCaseRepository) FindBySerialInState(ctx context.Context, serial string, state claim.State) (*claim.Case, error) {
	assets := r.db.Model(&models.AssetModel{}).
		Select("id").
		Where("serial_number = ?", strings.ToUpper(strings.TrimSpace(serial)))
	return r.first(r.db.WithContext(ctx).
		Where("asset_id IN (?) AND state = ?", assets, state).
		Order("registered_at DESC"))
}

// FindByAssetCodeInState finds the newest case in state whose asset has the code
func (r *GormCaseRepository) FindByAssetCodeInState(ctx context.Context, code string, state claim.State) (*claim.Case, error) {
	assets := r.db.Model(&models.AssetModel{}).
		Select("id").
		Where("asset_code = ?", strings.ToUpper(strings.TrimSpace(code)))
	return r.first(r.db.WithContext(ctx).
		Where("asset_id IN (?) AND state = ?", assets, state).
		Order("registered_at DESC"))
}

// FindAwaitingInsurerResponse lists cases sent to the insurer with no response yet
func (r *GormCaseRepository) FindAwaitingInsurerResponse(ctx context.Context) ([]*claim.Case, error) {
	return r.find(r.db.WithContext(ctx).
		Where("state = ?", claim.StateSentToInsurer).
		Where("sent_to_insurer_at IS NOT NULL AND insurer_responded_at IS NULL").
		Where("alert_insurer_response = ?", true))
}

// FindWithoutCustodianNotice lists cases in states whose custodian was never notified
func (r *GormCaseRepository) FindWithoutCustodianNotice(ctx context.Context, states []claim.State) ([]*claim.Case, error) {
	if len(states) == 0 {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).
		Where("state IN ?", states).
		Where("custodian_notified_at IS NULL").
		Where("alert_custodian = ?", true))
}

// FindInState lists cases currently in state
func (r *GormCaseRepository) FindInState(ctx context.Context, state claim.State) ([]*claim.Case, error) {
	return r.find(r.db.WithContext(ctx).Where("state = ?", state))
}

// FindDepositPending lists open cases with a signed indemnity and no payment
func (r *GormCaseRepository) FindDepositPending(ctx context.Context) ([]*claim.Case, error) {
	return r.find(r.db.WithContext(ctx).
		Where("state <> ?", claim.StateClosed).
		Where("indemnity_signed_at IS NOT NULL AND paid_at IS NULL").
		Where("alert_deposit = ?", true))
}

// Create inserts a new case
func (r *GormCaseRepository) Create(ctx context.Context, c *claim.Case) error {
	model := &models.CaseModel{}
	model.FromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveTransition writes the transition guarded by the previous state and version
func (r *GormCaseRepository) SaveTransition(ctx context.Context, c *claim.Case, change claim.StateChange) error {
	model := &models.CaseModel{}
	model.FromDomain(c)

	updates := model.TransitionColumns()
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&models.CaseModel{}).
		Where("id = ? AND state = ? AND version = ?", c.ID, change.Previous, c.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	c.Version++
	return nil
}

// LockForAlert bumps the case's alert sequence, which takes the row lock
// for the rest of the surrounding transaction on every supported driver.
func (r *GormCaseRepository) LockForAlert(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.CaseModel{}).
		Where("id = ?", id).
		UpdateColumn("alert_seq", gorm.Expr("alert_seq + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkCustodianNotified sets custodian_notified_at only if it is still NULL
func (r *GormCaseRepository) MarkCustodianNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CaseModel{}).
		Where("id = ? AND custodian_notified_at IS NULL", id).
		UpdateColumn("custodian_notified_at", at.UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkDocumentationReminded sets last_doc_reminder_on to day if it is earlier or unset
func (r *GormCaseRepository) MarkDocumentationReminded(ctx context.Context, id uuid.UUID, day time.Time) (bool, error) {
	d := day.Format(dateLayout)
	result := r.db.WithContext(ctx).
		Model(&models.CaseModel{}).
		Where("id = ? AND (last_doc_reminder_on IS NULL OR last_doc_reminder_on < ?)", id, d).
		UpdateColumn("last_doc_reminder_on", d)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GormAssetRepository implements claim.AssetRepository using GORM
type GormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository creates a new GormAssetRepository
func NewGormAssetRepository(db *gorm.DB) *GormAssetRepository {
	return &GormAssetRepository{db: db}
}

// FindByID finds an asset by its ID
func (r *GormAssetRepository) FindByID(ctx context.Context, id uuid.UUID) (*claim.Asset, error) {
	var model models.AssetModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new asset
func (r *GormAssetRepository) Create(ctx context.Context, a *claim.Asset) error {
	model := &models.AssetModel{}
	model.FromDomain(a)
	return r.db.WithContext(ctx).Create(model).Error
}

// GormPolicyRepository implements claim.PolicyRepository using GORM
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// FindByID finds a policy by its ID
func (r *GormPolicyRepository) FindByID(ctx context.Context, id uuid.UUID) (*claim.Policy, error) {
	var model models.PolicyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new policy
func (r *GormPolicyRepository) Create(ctx context.Context, p *claim.Policy) error {
	model := &models.PolicyModel{}
	model.FromDomain(p)
	return r.db.WithContext(ctx).Create(model).Error
}

// Ensure repositories implement the domain interfaces
var (
	_ claim.CaseRepository   = (*GormCaseRepository)(nil)
	_ claim.AssetRepository  = (*GormAssetRepository)(nil)
	_ claim.PolicyRepository = (*GormPolicyRepository)(nil)
)
