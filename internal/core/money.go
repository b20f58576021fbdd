package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is appended to formatted KPI values.
const DefaultCurrency = "XOF"

// maxAmountExponent bounds the decimal exponent of an accepted amount to the
// float64 range. Sums rescale operands to a common exponent, so an
// unbounded one makes arithmetic arbitrarily expensive.
const maxAmountExponent = 308

// ParseAmount converts a raw cell to an Amount. Surrounding whitespace is
// ignored. Empty or non-numeric input, and values outside the float64
// range, yield an invalid Amount; it never fails.
//
// Examples:
//
//	ParseAmount("100")    -> 100, valid
//	ParseAmount(" 12.5 ") -> 12.5, valid
//	ParseAmount("abc")    -> invalid
//	ParseAmount("1e999")  -> invalid
func ParseAmount(raw string) Amount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !finite(d) {
		return Amount{}
	}
	return Amount{Decimal: d, Valid: true}
}

// FormatAmount renders d with two decimals, comma thousand separators and
// the given currency suffix, e.g. "1,234.50 XOF".
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}

func finite(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return false
	}
	return !math.IsInf(d.InexactFloat64(), 0)
}
