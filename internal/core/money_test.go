package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "dot separator", input: "12.34", want: 1234},
		{name: "comma separator", input: "12,34", want: 1234},
		{name: "no fraction", input: "12", want: 1200},
		{name: "one fractional digit", input: "12.3", want: 1230},
		{name: "third digit rounds down", input: "12.345", want: 1234},
		{name: "third digit rounds up", input: "12.346", want: 1235},
		{name: "leading whitespace", input: "  5.00", want: 500},
		{name: "empty", input: "", wantErr: true},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative", input: "-3.50", wantErr: true},
		{name: "letters", input: "12a.00", wantErr: true},
		{name: "two separators", input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDecimalToCents(%q) expected error, got %d", tt.input, got)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error should wrap ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimalToCents(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSignedDecimalToCents(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "0", want: 0},
		{input: "-3.50", want: -350},
		{input: "1000.00", want: 100000},
		{input: "abc", wantErr: true},
		// Values whose cent representation does not fit in int64 must not wrap.
		{input: "92233720368547758.08", wantErr: true},
		{input: "-92233720368547758.08", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSignedDecimalToCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSignedDecimalToCents(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSignedDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		n     int
		want  []int64
	}{
		{name: "even split", total: 30000, n: 3, want: []int64{10000, 10000, 10000}},
		{name: "remainder to last", total: 10000, n: 3, want: []int64{3333, 3333, 3334}},
		{name: "single installment", total: 9999, n: 1, want: []int64{9999}},
		{name: "two cents remainder", total: 1100, n: 3, want: []int64{366, 366, 368}},
		{name: "more parts than cents", total: 5, n: 10, want: []int64{0, 0, 0, 0, 0, 0, 0, 0, 0, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(Money{Cents: tt.total}, tt.n)
			if len(got) != tt.n {
				t.Fatalf("Split returned %d parts, want %d", len(got), tt.n)
			}
			var sum int64
			for i, part := range got {
				if part.Cents != tt.want[i] {
					t.Errorf("part %d = %d cents, want %d", i, part.Cents, tt.want[i])
				}
				sum += part.Cents
			}
			if sum != tt.total {
				t.Errorf("parts sum to %d cents, want %d exactly", sum, tt.total)
			}
		})
	}
}

func TestSplitExactness(t *testing.T) {
	// Sum must equal the total exactly for awkward totals and counts.
	totals := []int64{1, 99, 100, 101, 10000, 99999, 123457}
	for _, total := range totals {
		for n := 1; n <= 13; n++ {
			parts := Split(Money{Cents: total}, n)
			var sum int64
			for _, p := range parts {
				sum += p.Cents
			}
			if sum != total {
				t.Errorf("Split(%d, %d): parts sum to %d", total, n, sum)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 1234, want: "12.34"},
		{cents: 5, want: "0.05"},
		{cents: -350, want: "-3.50"},
		{cents: 0, want: "0.00"},
	}
	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
