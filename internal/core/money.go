// Package core provides the invoice model, numeric coercion and the pure
// aggregation functions (filters, totals, chart series) built on top of it.
//
// This file contains the "parse or zero" coercion rules and display formatting
// for monetary amounts.
package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IsFinite reports whether f is neither NaN nor an infinity.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CoerceFloat maps NaN and infinities to zero so they never reach arithmetic.
func CoerceFloat(f float64) float64 {
	if !IsFinite(f) {
		return 0
	}
	return f
}

// ParseFloatOrZero parses a decimal string, returning 0 for anything that is
// not a finite number. Surrounding whitespace is ignored.
//
// Examples:
//
//	ParseFloatOrZero("50")    -> 50
//	ParseFloatOrZero(" 1.5 ") -> 1.5
//	ParseFloatOrZero("abc")   -> 0
//	ParseFloatOrZero("NaN")   -> 0
func ParseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return CoerceFloat(f)
}

// CoerceAny applies parse-or-zero to a loosely typed value, as decoded from a
// JSON document. Booleans follow the usual numeric conversion (true is 1).
func CoerceAny(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return CoerceFloat(x)
	case float32:
		return CoerceFloat(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		return ParseFloatOrZero(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return CoerceFloat(f)
	default:
		return 0
	}
}

// FormatAmount renders an amount with two decimals and the euro sign, e.g.
// "1234.50 €". Rounding happens here and only here.
func FormatAmount(f float64) string {
	return decimal.NewFromFloat(CoerceFloat(f)).StringFixed(2) + " €"
}

// FormatPct renders a percentage with two decimals.
func FormatPct(f float64) string {
	return decimal.NewFromFloat(CoerceFloat(f)).StringFixed(2)
}

// RoundAmount rounds to cents for presentation layers that emit numbers.
func RoundAmount(f float64) float64 {
	v, _ := decimal.NewFromFloat(CoerceFloat(f)).Round(2).Float64()
	return v
}
