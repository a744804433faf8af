package domain

import "github.com/thedudeontitan/ouro-fi/pkg/quant"

// PortfolioSnapshot is a derived roll-up of a trader's open positions.
// Recomputed on demand; never mutated in place.
type PortfolioSnapshot struct {
	Trader          string         `json:"trader"`
	MarginUsedE6    quant.AmountE6 `json:"margin_used"`
	UnrealizedPnLE6 quant.AmountE6 `json:"unrealized_pnl"`
	AvailableE6     quant.AmountE6 `json:"available_margin"`
	TotalValueE6    quant.AmountE6 `json:"total_value"`
	ExcludedSymbols []string       `json:"excluded_symbols,omitempty"` // Symbols whose PnL was dropped due to price lookup failure
}
