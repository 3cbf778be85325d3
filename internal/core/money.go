// Package core provides the ledger domain types and money parsing.
//
// Costs are carried as exact decimals end to end. Nothing in this package
// rounds; display formatting to two fractional digits belongs to whoever
// renders the value.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseCost converts user text to a strictly positive decimal cost.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, thousands separators and zero are rejected. The fractional part
// is kept at full precision.
//
// Examples:
//
//	ParseCost("12.34") -> 12.34, nil
//	ParseCost("12,5")  -> 12.5, nil
//	ParseCost("-1")    -> error
func ParseCost(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, costError()
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, costError()
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, costError()
	}
	if parts[0] == "" {
		s = "0" + s
	}
	for _, r := range strings.ReplaceAll(s, ".", "") {
		if !unicode.IsDigit(r) {
			return decimal.Zero, costError()
		}
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, costError()
	}
	return d, nil
}

// FormatCost renders a cost with two fractional digits for display.
func FormatCost(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func costError() error {
	return &ValidationError{Field: "cost", Err: ErrInvalidCost}
}
