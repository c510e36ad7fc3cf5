// Package extraction turns mailbox messages into correspondence facts.
package extraction

import (
	"mime"
	"regexp"
	"strings"
	"unicode"

	"github.com/emersion/go-message/charset"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var headerDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// DecodeHeader decodes any RFC 2047 encoded words left in a header value.
// Undecodable input is returned unchanged.
func DecodeHeader(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	out, err := headerDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases s and strips combining accents, so that "Indemnización"
// and "INDEMNIZACION" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// FoldUpper is Fold in upper case, used for label matching
func FoldUpper(s string) string {
	return strings.ToUpper(Fold(s))
}

var amountCleaner = strings.NewReplacer(",", "", " ", "", "\t", "", "\u00a0", "")

// ParseAmount parses an amount such as "1,350.00" or "1 350.00".
// Thousands separators and whitespace are dropped.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(amountCleaner.Replace(strings.TrimSpace(s)))
}

var trailingAmount = regexp.MustCompile(`([\d\s,]+\.\d{2})\s*$`)

// TrailingAmount returns the amount that ends line, if any
func TrailingAmount(line string) (decimal.Decimal, bool) {
	m := trailingAmount.FindStringSubmatch(line)
	if m == nil {
		return decimal.Decimal{}, false
	}
	d, err := ParseAmount(m[1])
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
