// Package core holds the domain model of the ledger and billing engine.
//
// Monetary values are fixed-point: integer cents, never binary floating
// point. All comparisons are exact; there is no epsilon tolerance anywhere.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a monetary value in integer cents. The zero value is zero money.
type Money struct {
	Cents int64
}

// NewMoney builds a Money from a whole-unit amount and extra cents.
func NewMoney(units, cents int64) Money {
	return Money{Cents: units*100 + cents}
}

func (m Money) Add(other Money) Money { return Money{Cents: m.Cents + other.Cents} }

func (m Money) Sub(other Money) Money { return Money{Cents: m.Cents - other.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.Cents > 0 }

// Cmp returns -1, 0 or +1 comparing m against other. Equality is exact.
func (m Money) Cmp(other Money) int {
	switch {
	case m.Cents < other.Cents:
		return -1
	case m.Cents > other.Cents:
		return 1
	default:
		return 0
	}
}

// String formats the amount with two decimal places, e.g. "33.34" or "-0.05".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// Split divides total into n parts of two-decimal precision. Each part is
// floor(total/n) cents; the residual is added to the LAST part, so the parts
// always sum to total exactly.
//
// Split(Money{10000}, 3) -> [33.33, 33.33, 33.34]
func Split(total Money, n int) []Money {
	if n < 1 {
		return nil
	}
	base := total.Cents / int64(n)
	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{Cents: base}
	}
	parts[n-1].Cents += total.Cents - base*int64(n)
	return parts
}

// ParseDecimalToCents converts a positive decimal string to cents.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted; a third
// decimal digit is rounded half-up. Returns ErrInvalidAmount for malformed
// input, signs, or amounts that are not strictly positive.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1234, nil (rounds down)
//	ParseDecimalToCents("12.346") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	cents, neg, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if neg || cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseSignedDecimalToCents is ParseDecimalToCents with a leading minus sign
// allowed and zero accepted. Used for opening balances and manual balance
// overrides, which may legitimately be zero or negative.
func ParseSignedDecimalToCents(s string) (int64, error) {
	cents, neg, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

func parseDecimal(s string) (cents int64, neg bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, false, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" && len(parts) == 2 {
		return 0, false, ErrInvalidAmount
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, false, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, false, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false, ErrInvalidAmount
	}
	// Prevent overflow in iv*100 + fracCents
	const maxSafeInt64 = (1<<63 - 1 - 99) / 100
	if iv > maxSafeInt64 {
		return 0, false, ErrInvalidAmount
	}
	// Take the first two fractional digits; half-up rounding on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, neg, nil
}
