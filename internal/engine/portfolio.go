package engine

import (
	"log/slog"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
	"github.com/thedudeontitan/ouro-fi/pkg/safe"
)

// PriceLookup resolves the current mark price for a symbol during
// aggregation.
type PriceLookup func(symbol string) (quant.PriceE8, error)

// Aggregate rolls a trader's open positions up into a portfolio snapshot.
// wallet is the collateral balance reported by the external wallet source.
//
// A price lookup failure for one symbol excludes that position's PnL
// contribution and records the symbol in ExcludedSymbols instead of failing
// the whole snapshot: a partial portfolio view beats none during a feed
// outage. The empty position set yields all-zero figures.
func Aggregate(trader string, positions []domain.Position, wallet quant.AmountE6, lookup PriceLookup) domain.PortfolioSnapshot {
	snap := domain.PortfolioSnapshot{Trader: trader}

	var excluded map[string]bool
	for i := range positions {
		p := &positions[i]
		snap.MarginUsedE6 = quant.AmountE6(safe.SafeAdd(int64(snap.MarginUsedE6), int64(p.MarginE6)))

		price, err := lookup(p.Symbol)
		if err != nil {
			slog.Warn("Snapshot price lookup failed, excluding PnL contribution",
				slog.String("trader", trader),
				slog.String("symbol", p.Symbol),
				slog.Any("error", err))
			if excluded == nil {
				excluded = make(map[string]bool)
			}
			if !excluded[p.Symbol] {
				excluded[p.Symbol] = true
				snap.ExcludedSymbols = append(snap.ExcludedSymbols, p.Symbol)
			}
			continue
		}

		pnl := UnrealizedPnL(p, price)
		snap.UnrealizedPnLE6 = quant.AmountE6(safe.SafeAdd(int64(snap.UnrealizedPnLE6), int64(pnl)))
	}

	snap.AvailableE6 = quant.AmountE6(safe.SafeSub(int64(wallet), int64(snap.MarginUsedE6)))
	snap.TotalValueE6 = quant.AmountE6(safe.SafeAdd(int64(snap.AvailableE6), int64(snap.UnrealizedPnLE6)))
	return snap
}
