// Package money provides currency-unit normalisation for decimal amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	INR Currency = "INR"
	JPY Currency = "JPY"
)

// DefaultCurrency is used when a catalog does not declare one.
const DefaultCurrency = USD

// minorUnits is the number of decimal places of the smallest currency unit.
var minorUnits = map[Currency]int32{
	USD: 2,
	EUR: 2,
	INR: 2,
	JPY: 0,
}

// MinorUnits returns the decimal places of the currency's smallest unit.
// Unknown currencies use two places.
func MinorUnits(c Currency) int32 {
	if places, ok := minorUnits[Currency(strings.ToUpper(string(c)))]; ok {
		return places
	}
	return 2
}

// MinorUnit returns the smallest amount of c, e.g. 0.01 for USD.
func MinorUnit(c Currency) decimal.Decimal {
	return decimal.New(1, -MinorUnits(c))
}

var half = decimal.New(5, -1)

// RoundHalfUp rounds d to the given number of decimal places, with ties going
// toward positive infinity (2.345 -> 2.35, -2.345 -> -2.34).
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

// ToCurrencyUnit rounds d half-up to the smallest unit of c.
func ToCurrencyUnit(d decimal.Decimal, c Currency) decimal.Decimal {
	return RoundHalfUp(d, MinorUnits(c))
}

// Format renders d in the smallest unit of c, e.g. "59000.00".
func Format(d decimal.Decimal, c Currency) string {
	places := MinorUnits(c)
	return ToCurrencyUnit(d, c).StringFixed(places)
}

// ParseAmount parses a decimal amount such as "454000" or "1234.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
