package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/claimsync/backend/internal/domain/correspondence"
)

// BrokerResponseMarker is the subject phrase that identifies a broker response
const BrokerResponseMarker = "RESPUESTA SINIESTRO"

var caseNumberPattern = regexp.MustCompile(`(?:SIN-(?:EMAIL-)?\d{4}-\d{4,5}|\d{6})`)

// BrokerResponseExtractor recognises broker replies by subject line
type BrokerResponseExtractor struct {
	marker string
}

// NewBrokerResponseExtractor creates the broker-response extractor
func NewBrokerResponseExtractor() *BrokerResponseExtractor {
	return &BrokerResponseExtractor{marker: Fold(BrokerResponseMarker)}
}

// Extract implements correspondence.Extractor
func (e *BrokerResponseExtractor) Extract(_ context.Context, msg *correspondence.RawMessage) (correspondence.Fact, error) {
	subject := DecodeHeader(msg.Subject)
	if !strings.Contains(Fold(subject), e.marker) {
		return nil, correspondence.ErrNotApplicable
	}
	number := caseNumberPattern.FindString(strings.ToUpper(subject))
	if number == "" {
		return nil, correspondence.Malformed("no case number in subject")
	}
	return correspondence.BrokerResponseFact{CaseNumber: number}, nil
}
