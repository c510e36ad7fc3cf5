package models

import (
	"time"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CaseModel is the persistence model for the Case aggregate
type CaseModel struct {
	AggregateModel
	Number   string      `gorm:"type:varchar(50);not null;uniqueIndex"`
	State    claim.State `gorm:"type:varchar(40);not null;index"`
	AssetID  *uuid.UUID  `gorm:"type:uuid;index"`
	PolicyID *uuid.UUID  `gorm:"type:uuid;index"`

	BrokerEmail    string `gorm:"type:varchar(200)"`
	BrokerPhone    string `gorm:"type:varchar(50)"`
	CustodianName  string `gorm:"type:varchar(200)"`
	CustodianEmail string `gorm:"type:varchar(200)"`
	CustodianPhone string `gorm:"type:varchar(50)"`

	AlertInsurerResponse bool `gorm:"not null;default:true"`
	AlertCustodian       bool `gorm:"not null;default:true"`
	AlertDeposit         bool `gorm:"not null;default:true"`

	RegisteredAt        time.Time `gorm:"not null"`
	BrokerNotifiedAt    *time.Time
	BrokerRespondedAt   *time.Time
	BrokerResponder     string `gorm:"type:varchar(200)"`
	SentToInsurerAt     *time.Time
	InsurerRespondedAt  *time.Time
	IndemnitySignedAt   *time.Time
	ReceiptReceivedAt   *time.Time
	PaidAt              *time.Time
	ClosedAt            *time.Time
	CustodianNotifiedAt *time.Time
	LastDocReminderOn   *time.Time `gorm:"type:date"`

	ReceiptDocumentKey        string              `gorm:"type:varchar(500)"`
	ReceiptSender             string              `gorm:"type:varchar(200)"`
	NetIndemnification        decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	GrossLoss                 decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Deductible                decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Depreciation              decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	NetLossBeforeDepreciation decimal.NullDecimal `gorm:"type:decimal(18,2)"`

	AlertSeq int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CaseModel) TableName() string {
	return "cases"
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// ToDomain converts the persistence model to a domain Case
func (m *CaseModel) ToDomain() *claim.Case {
	return &claim.Case{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		Number:               m.Number,
		State:                m.State,
		AssetID:              m.AssetID,
		PolicyID:             m.PolicyID,
		BrokerEmail:          m.BrokerEmail,
		BrokerPhone:          m.BrokerPhone,
		CustodianName:        m.CustodianName,
		CustodianEmail:       m.CustodianEmail,
		CustodianPhone:       m.CustodianPhone,
		AlertInsurerResponse: m.AlertInsurerResponse,
		AlertCustodian:       m.AlertCustodian,
		AlertDeposit:         m.AlertDeposit,
		RegisteredAt:         m.RegisteredAt,
		BrokerNotifiedAt:     m.BrokerNotifiedAt,
		BrokerRespondedAt:    m.BrokerRespondedAt,
		BrokerResponder:      m.BrokerResponder,
		SentToInsurerAt:      m.SentToInsurerAt,
		InsurerRespondedAt:   m.InsurerRespondedAt,
		IndemnitySignedAt:    m.IndemnitySignedAt,
		ReceiptReceivedAt:    m.ReceiptReceivedAt,
		PaidAt:               m.PaidAt,
		ClosedAt:             m.ClosedAt,
		CustodianNotifiedAt:  m.CustodianNotifiedAt,
		LastDocReminderOn:    m.LastDocReminderOn,
		Receipt: claim.Receipt{
			DocumentKey:               m.ReceiptDocumentKey,
			Sender:                    m.ReceiptSender,
			NetIndemnification:        decimalPtr(m.NetIndemnification),
			GrossLoss:                 decimalPtr(m.GrossLoss),
			Deductible:                decimalPtr(m.Deductible),
			Depreciation:              decimalPtr(m.Depreciation),
			NetLossBeforeDepreciation: decimalPtr(m.NetLossBeforeDepreciation),
		},
	}
}

// FromDomain populates the model from a domain Case
func (m *CaseModel) FromDomain(c *claim.Case) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Number = c.Number
	m.State = c.State
	m.AssetID = c.AssetID
	m.PolicyID = c.PolicyID
	m.BrokerEmail = c.BrokerEmail
	m.BrokerPhone = c.BrokerPhone
	m.CustodianName = c.CustodianName
	m.CustodianEmail = c.CustodianEmail
	m.CustodianPhone = c.CustodianPhone
	m.AlertInsurerResponse = c.AlertInsurerResponse
	m.AlertCustodian = c.AlertCustodian
	m.AlertDeposit = c.AlertDeposit
	m.RegisteredAt = c.RegisteredAt.UTC()
	m.BrokerNotifiedAt = utc(c.BrokerNotifiedAt)
	m.BrokerRespondedAt = utc(c.BrokerRespondedAt)
	m.BrokerResponder = c.BrokerResponder
	m.SentToInsurerAt = utc(c.SentToInsurerAt)
	m.InsurerRespondedAt = utc(c.InsurerRespondedAt)
	m.IndemnitySignedAt = utc(c.IndemnitySignedAt)
	m.ReceiptReceivedAt = utc(c.ReceiptReceivedAt)
	m.PaidAt = utc(c.PaidAt)
	m.ClosedAt = utc(c.ClosedAt)
	m.CustodianNotifiedAt = utc(c.CustodianNotifiedAt)
	m.LastDocReminderOn = utc(c.LastDocReminderOn)
	m.ReceiptDocumentKey = c.Receipt.DocumentKey
	m.ReceiptSender = c.Receipt.Sender
	m.NetIndemnification = nullDecimal(c.Receipt.NetIndemnification)
	m.GrossLoss = nullDecimal(c.Receipt.GrossLoss)
	m.Deductible = nullDecimal(c.Receipt.Deductible)
	m.Depreciation = nullDecimal(c.Receipt.Depreciation)
	m.NetLossBeforeDepreciation = nullDecimal(c.Receipt.NetLossBeforeDepreciation)
}

// TransitionColumns returns the columns a guarded transition may write
func (m *CaseModel) TransitionColumns() map[string]any {
	return map[string]any{
		"state":                        m.State,
		"updated_at":                   m.UpdatedAt,
		"broker_notified_at":           m.BrokerNotifiedAt,
		"broker_responded_at":          m.BrokerRespondedAt,
		"broker_responder":             m.BrokerResponder,
		"sent_to_insurer_at":           m.SentToInsurerAt,
		"insurer_responded_at":         m.InsurerRespondedAt,
		"indemnity_signed_at":          m.IndemnitySignedAt,
		"receipt_received_at":          m.ReceiptReceivedAt,
		"paid_at":                      m.PaidAt,
		"closed_at":                    m.ClosedAt,
		"receipt_document_key":         m.ReceiptDocumentKey,
		"receipt_sender":               m.ReceiptSender,
		"net_indemnification":          m.NetIndemnification,
		"gross_loss":                   m.GrossLoss,
		"deductible":                   m.Deductible,
		"depreciation":                 m.Depreciation,
		"net_loss_before_depreciation": m.NetLossBeforeDepreciation,
	}
}

// AssetModel is the persistence model for insured assets
type AssetModel struct {
	BaseModel
	Name         string `gorm:"type:varchar(200);not null"`
	SerialNumber string `gorm:"type:varchar(100);index"`
	AssetCode    string `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (AssetModel) TableName() string {
	return "assets"
}

// ToDomain converts the model to a domain Asset
func (m *AssetModel) ToDomain() *claim.Asset {
	return &claim.Asset{
		BaseEntity:   m.BaseModel.ToDomain(),
		Name:         m.Name,
		SerialNumber: m.SerialNumber,
		AssetCode:    m.AssetCode,
	}
}

// FromDomain populates the model from a domain Asset
func (m *AssetModel) FromDomain(a *claim.Asset) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Name = a.Name
	m.SerialNumber = a.SerialNumber
	m.AssetCode = a.AssetCode
}

// PolicyModel is the persistence model for insurance policies
type PolicyModel struct {
	BaseModel
	Number      string `gorm:"type:varchar(100);not null;uniqueIndex"`
	InsurerName string `gorm:"type:varchar(200)"`
	BrokerName  string `gorm:"type:varchar(200)"`
	BrokerEmail string `gorm:"type:varchar(200)"`
	BrokerPhone string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (PolicyModel) TableName() string {
	return "policies"
}

// ToDomain converts the model to a domain Policy
func (m *PolicyModel) ToDomain() *claim.Policy {
	return &claim.Policy{
		BaseEntity:  m.BaseModel.ToDomain(),
		Number:      m.Number,
		InsurerName: m.InsurerName,
		BrokerName:  m.BrokerName,
		BrokerEmail: m.BrokerEmail,
		BrokerPhone: m.BrokerPhone,
	}
}

// FromDomain populates the model from a domain Policy
func (m *PolicyModel) FromDomain(p *claim.Policy) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Number = p.Number
	m.InsurerName = p.InsurerName
	m.BrokerName = p.BrokerName
	m.BrokerEmail = p.BrokerEmail
	m.BrokerPhone = p.BrokerPhone
}
