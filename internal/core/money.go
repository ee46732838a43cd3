// Package core provides money handling utilities.
//
// Amounts travel as decimal numbers on the wire and are stored as integer
// cents. Display always uses exactly two decimal places.
package core

import (
	"github.com/shopspring/decimal"
)

func init() {
	// The REST contract carries amounts as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ToCents converts a decimal amount to cents with half-up rounding.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts cents back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatAmount renders d with exactly two decimals, e.g. 1234.5 -> "1234.50".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
