package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/shopspring/decimal"
)

var (
	claimNumberPattern = regexp.MustCompile(`(?i)(?:RECLAMO|NO\.?\s*RECLAMO|CLAIM|SINIESTRO\s*(?:NO\.?|#)?)[:\s]*(\d{5,})`)
	bareNumberPattern  = regexp.MustCompile(`\d{6,}`)
	assetCodePattern   = regexp.MustCompile(`(?i)\b(?:AC|ACTIVO|COD\.?\s*ACTIVO)[:\s]*(\d{8,})`)
	digitPattern       = regexp.MustCompile(`\d`)

	// SE is also an ordinary Spanish word, so the short label needs a separator
	serialPattern = regexp.MustCompile(`(?i)(?:\b(?:SERIE|S/N)[ \t]*[:#]?|\bSE[ \t]*[:#])[ \t]*([A-Z0-9]{6,})`)
)

type amountField int

const (
	fieldNone amountField = iota
	fieldNet
	fieldGross
	fieldDeductible
	fieldDepreciation
	fieldNetLoss
)

// amountLabels is ordered by priority; the first rule that matches a line wins
var amountLabels = []struct {
	field  amountField
	labels []string
}{
	{fieldNet, []string{"LA SUMA DE", "RECIBI DE"}},
	{fieldGross, []string{"PERDIDA BRUTA"}},
	{fieldDeductible, []string{"DEDUCIBLE"}},
	{fieldDepreciation, []string{"DEPRECIACI", "DEPECIAC"}},
	{fieldNetLoss, []string{"PERDIDA NETA"}},
}

func classify(line string) amountField {
	upper := FoldUpper(line)
	for _, rule := range amountLabels {
		for _, label := range rule.labels {
			if strings.Contains(upper, label) {
				return rule.field
			}
		}
	}
	return fieldNone
}

// ReceiptExtractor reads indemnification receipts: the subject selects the
// message, the attached PDF supplies amounts and lookup keys.
type ReceiptExtractor struct {
	source correspondence.TextSource
}

// NewReceiptExtractor creates a receipt extractor reading PDFs through source
func NewReceiptExtractor(source correspondence.TextSource) *ReceiptExtractor {
	return &ReceiptExtractor{source: source}
}

// IsReceiptSubject reports whether a subject announces an indemnification receipt
func IsReceiptSubject(subject string) bool {
	folded := Fold(DecodeHeader(subject))
	return strings.Contains(folded, "recibo") && strings.Contains(folded, "indemnizaci")
}

// Extract implements correspondence.Extractor
func (e *ReceiptExtractor) Extract(ctx context.Context, msg *correspondence.RawMessage) (correspondence.Fact, error) {
	if !IsReceiptSubject(msg.Subject) {
		return nil, correspondence.ErrNotApplicable
	}
	doc, ok := msg.FirstPDF()
	if !ok {
		return nil, correspondence.Malformed("no PDF attachment")
	}
	lines, err := e.source.Lines(ctx, doc.Data)
	if err != nil {
		return nil, correspondence.Malformed("unreadable PDF: %v", err)
	}

	fact := correspondence.ReceiptFact{Document: doc}
	for _, line := range lines {
		amount, ok := TrailingAmount(line)
		if !ok {
			continue
		}
		v := amount
		switch classify(line) {
		case fieldNet:
			fact.NetAmount = &v
		case fieldGross:
			fact.GrossLoss = &v
		case fieldDeductible:
			fact.Deductible = &v
		case fieldDepreciation:
			fact.Depreciation = &v
		case fieldNetLoss:
			fact.NetLossBeforeDepreciation = &v
		}
	}

	document := FoldUpper(strings.Join(lines, "\n"))
	subject := FoldUpper(DecodeHeader(msg.Subject))
	texts := []string{document, subject, FoldUpper(msg.TextBody)}

	fact.ClaimNumber = firstGroup(claimNumberPattern, texts)
	if fact.ClaimNumber == "" {
		// the body is skipped here: signatures carry phone numbers
		fact.ClaimNumber = firstBareNumber([]string{document, subject})
	}
	fact.Serial = firstSerial(texts)
	fact.AssetCode = firstGroup(assetCodePattern, texts)

	if !fact.HasIdentifier() {
		return nil, correspondence.Malformed("no identifying field")
	}
	return fact, nil
}

func firstGroup(re *regexp.Regexp, texts []string) string {
	for _, text := range texts {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// firstSerial returns the first labelled serial that contains a digit
func firstSerial(texts []string) string {
	for _, text := range texts {
		for _, m := range serialPattern.FindAllStringSubmatch(text, -1) {
			if digitPattern.MatchString(m[1]) {
				return m[1]
			}
		}
	}
	return ""
}

func firstBareNumber(texts []string) string {
	for _, text := range texts {
		if m := bareNumberPattern.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// Amounts converts the fact's amounts into a map keyed by field name, for logging
func Amounts(f correspondence.ReceiptFact) map[string]string {
	out := make(map[string]string)
	add := func(name string, d *decimal.Decimal) {
		if d != nil {
			out[name] = d.StringFixed(2)
		}
	}
	add("net_indemnification", f.NetAmount)
	add("gross_loss", f.GrossLoss)
	add("deductible", f.Deductible)
	add("depreciation", f.Depreciation)
	add("net_loss_before_depreciation", f.NetLossBeforeDepreciation)
	return out
}
