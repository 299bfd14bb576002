package core

import (
	"testing"
	"time"
)

func TestYearMonthAddMonths(t *testing.T) {
	tests := []struct {
		name string
		ym   YearMonth
		n    int
		want YearMonth
	}{
		{name: "within year", ym: YearMonth{2025, time.January}, n: 2, want: YearMonth{2025, time.March}},
		{name: "year rollover", ym: YearMonth{2024, time.November}, n: 3, want: YearMonth{2025, time.February}},
		{name: "december plus one", ym: YearMonth{2024, time.December}, n: 1, want: YearMonth{2025, time.January}},
		{name: "zero months", ym: YearMonth{2025, time.June}, n: 0, want: YearMonth{2025, time.June}},
		{name: "many months", ym: YearMonth{2025, time.January}, n: 24, want: YearMonth{2027, time.January}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ym.AddMonths(tt.n); got != tt.want {
				t.Errorf("%v.AddMonths(%d) = %v, want %v", tt.ym, tt.n, got, tt.want)
			}
		})
	}
}

func TestParseYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2025-01")
	if err != nil {
		t.Fatalf("ParseYearMonth: %v", err)
	}
	if ym.Year != 2025 || ym.Month != time.January {
		t.Errorf("ParseYearMonth = %v, want 2025-01", ym)
	}
	if s := ym.String(); s != "2025-01" {
		t.Errorf("String() = %q, want \"2025-01\"", s)
	}

	if _, err := ParseYearMonth("2025-13"); err == nil {
		t.Error("ParseYearMonth should reject month 13")
	}
	if _, err := ParseYearMonth("garbage"); err == nil {
		t.Error("ParseYearMonth should reject garbage")
	}
}

func TestYearMonthCompare(t *testing.T) {
	a := YearMonth{2025, time.January}
	b := YearMonth{2025, time.February}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("Compare ordering is wrong")
	}
}
