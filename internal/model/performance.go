package model

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PercentChange returns (current-base)/base*100 rounded to two places.
// A zero base yields an invalid NullDecimal.
func PercentChange(current, base decimal.Decimal) decimal.NullDecimal {
	if base.IsZero() {
		return decimal.NullDecimal{}
	}
	pct := current.Sub(base).Div(base).Mul(hundred).Round(2)
	return decimal.NewNullDecimal(pct)
}

// Percent parses a percentage reported by an upstream ("0.98%" or "0.98")
func Percent(s string) decimal.NullDecimal {
	for len(s) > 0 && (s[len(s)-1] == '%' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Round(2))
}
