package safe

import (
	"math"
	"testing"
)

func TestSafeMath(t *testing.T) {
	tests := []struct {
		name string
		val1 int64
		val2 int64
		want int64
	}{
		{"Normal Add", 10, 20, 30},
		{"Add Boundary", math.MaxInt64 - 1, 1, math.MaxInt64},
		{"Normal Sub", 30, 10, 20},
		{"Normal Mul", 5, 6, 30},
		{"Normal Div", 100, 4, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64
			switch tt.name {
			case "Normal Add", "Add Boundary":
				got = SafeAdd(tt.val1, tt.val2)
			case "Normal Sub":
				got = SafeSub(tt.val1, tt.val2)
			case "Normal Mul":
				got = SafeMul(tt.val1, tt.val2)
			case "Normal Div":
				got = SafeDiv(tt.val1, tt.val2)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c int64
		want    int64
	}{
		{"Small values", 6, 7, 2, 21},
		{"Exceeds int64 intermediate", 40000000000, 1000000000, 400000000000, 100000000},
		{"Negative a", -40000000000, 1000000000, 400000000000, -100000000},
		{"Negative c", 40000000000, 1000000000, -400000000000, -100000000},
		{"Both negative", -6, -7, 2, 21},
		{"Truncates positive toward zero", 7, 1, 2, 3},
		{"Truncates negative toward zero", -7, 1, 2, -3},
		{"Zero numerator", 0, 123456, 789, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MulDiv(tt.a, tt.b, tt.c); got != tt.want {
				t.Errorf("MulDiv(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.c, got, tt.want)
			}
		})
	}
}

// Truncation symmetry must hold for any price move: a loss and the mirrored
// gain of the same magnitude produce results of equal magnitude.
func TestMulDiv_SymmetricRounding(t *testing.T) {
	size := int64(1000000000)
	entry := int64(400000000000)

	for _, diff := range []int64{1, 3, 333, 399999999999} {
		up := MulDiv(diff, size, entry)
		down := MulDiv(-diff, size, entry)
		if up != -down {
			t.Errorf("asymmetric rounding for diff %d: up=%d down=%d", diff, up, down)
		}
	}
}

func TestMathPanic(t *testing.T) {
	t.Run("Add Overflow", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Should have panicked")
			}
		}()
		SafeAdd(math.MaxInt64, 1)
	})

	t.Run("Div By Zero", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Should have panicked")
			}
		}()
		SafeDiv(10, 0)
	})

	t.Run("MulDiv By Zero", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Should have panicked")
			}
		}()
		MulDiv(10, 10, 0)
	})

	t.Run("MulDiv Quotient Overflow", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Should have panicked")
			}
		}()
		MulDiv(math.MaxInt64, math.MaxInt64, 1)
	})
}

func TestMulDiv_MinInt64Edge(t *testing.T) {
	// |MinInt64| is representable as the quotient only for negative results.
	if got := MulDiv(math.MinInt64, 1, 1); got != math.MinInt64 {
		t.Errorf("MulDiv(MinInt64, 1, 1) = %d", got)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("Should have panicked for positive MinInt64 magnitude")
		}
	}()
	MulDiv(math.MinInt64, -1, 1)
}
