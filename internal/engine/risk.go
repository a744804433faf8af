// Package engine implements the perpetual position risk model: entry and
// liquidation pricing, mark-to-market PnL, portfolio aggregation, and the
// orchestration that keeps them consistent under concurrent traders.
package engine

import (
	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
	"github.com/thedudeontitan/ouro-fi/pkg/safe"
)

// LiquidationPrice computes the forced-close threshold for a position opened
// at entry with the given leverage. ratioBps is the safety-margin ratio in
// basis points (9500 = 0.95).
//
//	Long:  floor(entry * (1 - r/leverage))
//	Short: floor(entry * (1 + r/leverage))
//
// Higher leverage pulls the threshold closer to entry; the threshold always
// sits on the loss side.
func LiquidationPrice(entry quant.PriceE8, leverage int64, isLong bool, ratioBps int64) quant.PriceE8 {
	den := safe.SafeMul(leverage, quant.BpsScale)
	var num int64
	if isLong {
		num = safe.SafeSub(den, ratioBps)
	} else {
		num = safe.SafeAdd(den, ratioBps)
	}
	return quant.PriceE8(safe.MulDiv(int64(entry), num, den))
}

// UnrealizedPnL computes the mark-to-market profit or loss of a position at
// the given price, in collateral micro-units.
//
//	long:  (current - entry) * size / entry
//	short: -(current - entry) * size / entry
//
// All arithmetic is integer fixed-point with a 128-bit intermediate;
// truncation is toward zero for both signs.
func UnrealizedPnL(p *domain.Position, current quant.PriceE8) quant.AmountE6 {
	diff := safe.SafeSub(int64(current), int64(p.EntryPriceE8))
	pnl := safe.MulDiv(diff, int64(p.SizeE6), int64(p.EntryPriceE8))
	if !p.IsLong {
		pnl = -pnl
	}
	return quant.AmountE6(pnl)
}

// ShouldLiquidate reports whether the position's liquidation threshold has
// been breached at the given price. The boundary itself triggers: a long
// liquidates at current <= threshold, a short at current >= threshold.
// Pure predicate; settlement of the breach is the caller's concern.
func ShouldLiquidate(p *domain.Position, current quant.PriceE8) bool {
	if p.IsLong {
		return current <= p.LiqPriceE8
	}
	return current >= p.LiqPriceE8
}
