package safe

import (
	"math"
	"math/bits"
)

// SafeAdd performs int64 addition and panics on overflow/underflow.
func SafeAdd(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return a + b
}

// SafeSub performs int64 subtraction and panics on overflow/underflow.
func SafeSub(a, b int64) int64 {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		panic("CORE_SAFE_SUB_OVERFLOW")
	}
	return a - b
}

// SafeMul performs int64 multiplication and panics on overflow/underflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		} else {
			if b < math.MinInt64/a {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		} else {
			if a < math.MaxInt64/b {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		}
	}
	return a * b
}

// SafeDiv performs int64 division and panics on division by zero.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic("CORE_SAFE_DIV_BY_ZERO")
	}
	// Note: MinInt64 / -1 also overflows.
	if a == math.MinInt64 && b == -1 {
		panic("CORE_SAFE_DIV_OVERFLOW")
	}
	return a / b
}

// MulDiv computes a*b/c through a 128-bit intermediate, truncating toward
// zero. The magnitude is divided first and the sign applied afterwards, so
// rounding is symmetric for positive and negative results.
// Panics on c == 0 or when the quotient does not fit in int64.
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		panic("CORE_SAFE_MULDIV_DIV_BY_ZERO")
	}

	neg := (a < 0) != (b < 0)
	if c < 0 {
		neg = !neg
	}

	hi, lo := bits.Mul64(abs64(a), abs64(b))
	uc := abs64(c)
	if hi >= uc {
		panic("CORE_SAFE_MULDIV_OVERFLOW")
	}
	q, _ := bits.Div64(hi, lo, uc)

	if neg {
		if q > uint64(math.MaxInt64)+1 {
			panic("CORE_SAFE_MULDIV_OVERFLOW")
		}
		if q == uint64(math.MaxInt64)+1 {
			return math.MinInt64
		}
		return -int64(q)
	}
	if q > uint64(math.MaxInt64) {
		panic("CORE_SAFE_MULDIV_OVERFLOW")
	}
	return int64(q)
}

func abs64(x int64) uint64 {
	if x < 0 {
		return uint64(-(x + 1)) + 1
	}
	return uint64(x)
}
