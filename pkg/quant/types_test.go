package quant

import "testing"

func TestToPriceE8Str(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want PriceE8
	}{
		{"Whole", "4000", 400000000000},
		{"Fraction", "4000.5", 400050000000},
		{"Full precision", "0.00000001", 1},
		{"Truncates excess digits", "1.123456789", 112345678},
		{"Negative", "-1.5", -150000000},
		{"Empty", "", 0},
		{"Null literal", "null", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToPriceE8Str(tt.in); got != tt.want {
				t.Errorf("ToPriceE8Str(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestToAmountE6Str(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want AmountE6
	}{
		{"Hundred USDC", "100", 100000000},
		{"Micro unit", "0.000001", 1},
		{"Negative", "-2.5", -2500000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToAmountE6Str(tt.in); got != tt.want {
				t.Errorf("ToAmountE6Str(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDisplayStrings(t *testing.T) {
	if got := PriceE8(400000000000).String(); got != "4000.00000000" {
		t.Errorf("PriceE8.String() = %q", got)
	}
	if got := AmountE6(100000000).String(); got != "100.000000" {
		t.Errorf("AmountE6.String() = %q", got)
	}
	if got := AmountE6(-2500000).String(); got != "-2.500000" {
		t.Errorf("negative AmountE6.String() = %q", got)
	}
}

func TestNextSeq(t *testing.T) {
	var seq uint64
	if got := NextSeq(&seq); got != 1 {
		t.Errorf("first NextSeq = %d, want 1", got)
	}
	if got := NextSeq(&seq); got != 2 {
		t.Errorf("second NextSeq = %d, want 2", got)
	}
}
