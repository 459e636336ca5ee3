package analysis

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// totalPattern matches a "Total" or "Amount" label followed by a number,
// tolerating markdown emphasis, a colon and a currency symbol in between.
var totalPattern = regexp.MustCompile(`(?i)\b(?:total|amount)\b[*\s:]*(?:[₹$€£]|rs\.?)?\s*(\d[\d,]*(?:\.\d+)?)`)

// ExtractTotal returns the first labelled amount in text. When no label
// matches, or the value cannot be stored, it returns zero and false.
func ExtractTotal(text string) (decimal.Decimal, bool) {
	m := totalPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	d, err = domain.NormalizeAmount(d)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
