package claim

import (
	"strings"
	"time"

	"github.com/claimsync/backend/internal/domain/shared"
)

// Asset is an insured item. Its serial number and asset code are alternate
// keys when a receipt does not carry a usable claim number.
type Asset struct {
	shared.BaseEntity
	Name         string
	SerialNumber string
	AssetCode    string
}

// NewAsset creates an asset; serial and code are normalized to upper case
func NewAsset(name, serial, code string, now time.Time) *Asset {
	return &Asset{
		BaseEntity:   shared.NewBaseEntity(now),
		Name:         strings.TrimSpace(name),
		SerialNumber: strings.ToUpper(strings.TrimSpace(serial)),
		AssetCode:    strings.ToUpper(strings.TrimSpace(code)),
	}
}

// Policy is the insurance policy a case is filed under
type Policy struct {
	shared.BaseEntity
	Number      string
	InsurerName string
	BrokerName  string
	BrokerEmail string
	BrokerPhone string
}

// NewPolicy creates a policy
func NewPolicy(number, insurer, brokerName, brokerEmail string, now time.Time) *Policy {
	return &Policy{
		BaseEntity:  shared.NewBaseEntity(now),
		Number:      strings.TrimSpace(number),
		InsurerName: strings.TrimSpace(insurer),
		BrokerName:  strings.TrimSpace(brokerName),
		BrokerEmail: strings.TrimSpace(brokerEmail),
	}
}

// BrokerContactEmail returns the case's broker address, falling back to the policy's
func BrokerContactEmail(c *Case, p *Policy) string {
	if c != nil && strings.TrimSpace(c.BrokerEmail) != "" {
		return strings.TrimSpace(c.BrokerEmail)
	}
	if p != nil {
		return p.BrokerEmail
	}
	return ""
}

// BrokerContactPhone returns the case's broker phone, falling back to the policy's
func BrokerContactPhone(c *Case, p *Policy) string {
	if c != nil && strings.TrimSpace(c.BrokerPhone) != "" {
		return strings.TrimSpace(c.BrokerPhone)
	}
	if p != nil {
		return strings.TrimSpace(p.BrokerPhone)
	}
	return ""
}
