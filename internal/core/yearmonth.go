package core

import (
	"fmt"
	"time"
)

// YearMonth identifies one calendar month, the grouping unit for credit card
// invoices.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the YearMonth containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses the "2006-01" format used in the database and on the
// wire.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: invalid year-month %q", ErrValidation, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// AddMonths returns the YearMonth n months later (or earlier for negative n).
func (ym YearMonth) AddMonths(n int) YearMonth {
	total := ym.Year*12 + int(ym.Month) - 1 + n
	return YearMonth{Year: total / 12, Month: time.Month(total%12 + 1)}
}

// Compare returns -1, 0 or +1 ordering ym against other chronologically.
func (ym YearMonth) Compare(other YearMonth) int {
	a := ym.Year*12 + int(ym.Month)
	b := other.Year*12 + int(other.Month)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether ym is the zero value.
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}
