package domain

import (
	"context"

	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

// PriceSource supplies current mark prices. Implementations must fall back
// to a static table on feed failure; for a supported symbol they only fail
// when both live and fallback data are missing (a configuration defect).
type PriceSource interface {
	// GetPrice returns the current mark price for a supported symbol.
	GetPrice(ctx context.Context, symbol string) (quant.PriceE8, error)

	// GetQuote returns the full price observation including confidence
	// and publisher.
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// CollateralSource reports a trader's wallet collateral balance.
type CollateralSource interface {
	GetAvailableCollateral(ctx context.Context, trader string) (quant.AmountE6, error)
}

// SettlementKind discriminates the decision being submitted to the ledger.
type SettlementKind string

const (
	SettleOpen      SettlementKind = "OPEN"
	SettleClose     SettlementKind = "CLOSE"
	SettleLiquidate SettlementKind = "LIQUIDATE"
)

// SettlementDecision is a finalized open/close/liquidation the engine hands
// to the ledger for durable recording.
type SettlementDecision struct {
	Kind          SettlementKind `json:"kind"`
	Position      Position       `json:"position"`
	ExitPriceE8   quant.PriceE8  `json:"exit_price,omitempty"` // Close/Liquidate only
	RealizedPnLE6 quant.AmountE6 `json:"realized_pnl,omitempty"`
	PayoutE6      quant.AmountE6 `json:"payout,omitempty"` // Margin + PnL - fees, floored at zero
	FeeE6         quant.AmountE6 `json:"fee,omitempty"`
}

// SettlementSubmitter records finalized decisions on the external ledger and
// returns an opaque confirmation token. The engine never fabricates tokens
// itself; a failed submission rolls the decision back.
type SettlementSubmitter interface {
	Submit(ctx context.Context, dec SettlementDecision) (token string, err error)
}
