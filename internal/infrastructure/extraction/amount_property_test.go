//go:build property
// +build property

package extraction

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// groupThousands renders n with sep between groups of three digits
func groupThousands(n int64, sep string) string {
	s := fmt.Sprintf("%d", n)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, sep)
}

// TestParseAmountSeparators checks that thousands separators never change the value.
// Property: ParseAmount(group(n, sep) + "." + cc) == n.cc for sep in {"", ",", " "}
func TestParseAmountSeparators(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("separators are ignored", prop.ForAll(
		func(units int64, cents int64, sep string) bool {
			in := fmt.Sprintf("%s.%02d", groupThousands(units, sep), cents)
			got, err := ParseAmount(in)
			if err != nil {
				return false
			}
			want := decimal.New(units*100+cents, -2)
			return got.Equal(want)
		},
		gen.Int64Range(0, 999999999),
		gen.Int64Range(0, 99),
		gen.OneConstOf("", ",", " "),
	))

	properties.Property("trailing amount matches the parsed value", prop.ForAll(
		func(units int64, cents int64) bool {
			line := fmt.Sprintf("LA SUMA DE %s.%02d", groupThousands(units, ","), cents)
			got, ok := TrailingAmount(line)
			return ok && got.Equal(decimal.New(units*100+cents, -2))
		},
		gen.Int64Range(0, 999999999),
		gen.Int64Range(0, 99),
	))

	properties.TestingRun(t)
}
