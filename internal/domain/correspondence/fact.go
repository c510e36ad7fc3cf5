package correspondence

import "github.com/shopspring/decimal"

// Fact is the structured result of extracting a message.
// The set of variants is closed: BrokerResponseFact and ReceiptFact.
type Fact interface {
	fact()
}

// BrokerResponseFact says the broker answered about a case
type BrokerResponseFact struct {
	CaseNumber string
}

func (BrokerResponseFact) fact() {}

// ReceiptFact carries the identifying keys and amounts read from an
// indemnification receipt. Any field may be missing, but at least one of
// ClaimNumber, Serial and AssetCode is set.
type ReceiptFact struct {
	ClaimNumber string
	Serial      string
	AssetCode   string

	NetAmount                 *decimal.Decimal
	GrossLoss                 *decimal.Decimal
	Deductible                *decimal.Decimal
	Depreciation              *decimal.Decimal
	NetLossBeforeDepreciation *decimal.Decimal

	Document Attachment
}

func (ReceiptFact) fact() {}

// HasIdentifier reports whether any lookup key was found
func (f ReceiptFact) HasIdentifier() bool {
	return f.ClaimNumber != "" || f.Serial != "" || f.AssetCode != ""
}
