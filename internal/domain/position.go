package domain

import (
	"fmt"

	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

// Status is the lifecycle state of a position. Open is the only live state;
// Closed and Liquidated are terminal.
type Status uint8

const (
	StatusOpen Status = iota + 1
	StatusClosed
	StatusLiquidated
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusClosed:
		return "CLOSED"
	case StatusLiquidated:
		return "LIQUIDATED"
	default:
		return "UNKNOWN"
	}
}

// Position represents a leveraged exposure to one symbol.
// All monetary values are strictly int64 fixed-point.
type Position struct {
	ID       uint64 `json:"id"`
	Trader   string `json:"trader"`
	Symbol   string `json:"symbol"`
	IsLong   bool   `json:"is_long"`
	Leverage int64  `json:"leverage"`

	MarginE6      quant.AmountE6 `json:"margin"`      // Collateral posted (USDC micro-units)
	EntryPriceE8  quant.PriceE8  `json:"entry_price"` // Mark price at open
	SizeE6        quant.AmountE6 `json:"size"`        // Notional magnitude = margin * leverage; direction carried by IsLong
	LiqPriceE8    quant.PriceE8  `json:"liq_price"`   // Forced-close threshold
	OpenedAtUnixM int64          `json:"opened_at_unix"`
	Status        Status         `json:"status"`
}

// IsOpen reports whether the position is still live.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// VerifyInvariant panics if the position violates its structural invariants.
// A violation is a programming error, not a recoverable condition.
func (p *Position) VerifyInvariant() {
	if p.MarginE6 <= 0 {
		panic(fmt.Sprintf("POSITION_INVARIANT_MARGIN: id=%d margin=%d", p.ID, p.MarginE6))
	}
	if p.Leverage < 1 {
		panic(fmt.Sprintf("POSITION_INVARIANT_LEVERAGE: id=%d leverage=%d", p.ID, p.Leverage))
	}
	if p.EntryPriceE8 <= 0 {
		panic(fmt.Sprintf("POSITION_INVARIANT_ENTRY: id=%d entry=%d", p.ID, p.EntryPriceE8))
	}
	if p.SizeE6 != quant.AmountE6(int64(p.MarginE6)*p.Leverage) {
		panic(fmt.Sprintf("POSITION_INVARIANT_SIZE: id=%d size=%d margin=%d leverage=%d",
			p.ID, p.SizeE6, p.MarginE6, p.Leverage))
	}
	// The liquidation threshold always sits on the loss side of entry.
	if p.IsLong && p.LiqPriceE8 >= p.EntryPriceE8 {
		panic(fmt.Sprintf("POSITION_INVARIANT_LIQ_LONG: id=%d liq=%d entry=%d", p.ID, p.LiqPriceE8, p.EntryPriceE8))
	}
	if !p.IsLong && p.LiqPriceE8 <= p.EntryPriceE8 {
		panic(fmt.Sprintf("POSITION_INVARIANT_LIQ_SHORT: id=%d liq=%d entry=%d", p.ID, p.LiqPriceE8, p.EntryPriceE8))
	}
}
