package quant

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// PriceE8 represents a mark price multiplied by 100,000,000 (10^8).
// E.g., $4,000.00 = 400,000,000,000 PriceE8.
type PriceE8 int64

// AmountE6 represents a collateral amount multiplied by 1,000,000 (10^6).
// This matches USDC micro-units. E.g., 100 USDC = 100,000,000 AmountE6.
type AmountE6 int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	PriceScale  = 100000000
	AmountScale = 1000000
	// BpsScale is the basis-point denominator used for ratios (fees, safety margin).
	BpsScale = 10000
)

// Decimal converts a price to its decimal representation.
// Note: Only used at the display boundary. Internal logic uses PriceE8 directly.
func (p PriceE8) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -8)
}

func (p PriceE8) String() string {
	return p.Decimal().StringFixed(8)
}

// Decimal converts an amount to its decimal representation.
func (a AmountE6) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -6)
}

func (a AmountE6) String() string {
	return a.Decimal().StringFixed(6)
}

// NextSeq generates the next sequence number atomically.
func NextSeq(ptr *uint64) uint64 {
	return atomic.AddUint64(ptr, 1)
}

// ToPriceE8Str converts a numeric string to PriceE8 without using float64.
// Rule #1: No Float. Using fixed-point string parsing.
func ToPriceE8Str(s string) PriceE8 {
	return PriceE8(parseFixedPoint(s, 8))
}

// ToAmountE6Str converts a numeric string to AmountE6 without using float64.
func ToAmountE6Str(s string) AmountE6 {
	return AmountE6(parseFixedPoint(s, 6))
}

// ParseTimeStamp converts a string (ms) to TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}

// parseFixedPoint parses a numeric string into an int64 with the given precision.
// E.g., parseFixedPoint("1.23", 6) -> 1,230,000.
func parseFixedPoint(s string, precision int) int64 {
	if s == "" || s == "null" {
		return 0
	}

	parts := []string{s}
	if dotIdx := strings.IndexByte(s, '.'); dotIdx != -1 {
		parts = []string{s[:dotIdx], s[dotIdx+1:]}
	}

	// 1. Parse Integer Part
	intPart, _ := strconv.ParseInt(parts[0], 10, 64)
	for i := 0; i < precision; i++ {
		intPart *= 10
	}

	if len(parts) < 2 {
		return intPart
	}

	// 2. Parse Fraction Part
	fracStr := parts[1]
	if len(fracStr) > precision {
		fracStr = fracStr[:precision]
	}
	fracPart, _ := strconv.ParseInt(fracStr, 10, 64)

	// Pad fraction part with zeros if shorter than precision
	for i := len(fracStr); i < precision; i++ {
		fracPart *= 10
	}

	// 3. Handle Negative
	if strings.HasPrefix(parts[0], "-") {
		return intPart - fracPart
	}
	return intPart + fracPart
}
