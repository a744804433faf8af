package engine

import (
	"context"
	"log/slog"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
)

// Monitor consumes streamed price updates and force-closes positions whose
// liquidation threshold the new price breaches. The engine itself only
// reports the breach condition; the monitor is the component that acts on it.
type Monitor struct {
	engine  *Engine
	updates <-chan domain.PriceUpdate
}

// NewMonitor creates a liquidation monitor reading from updates.
func NewMonitor(engine *Engine, updates <-chan domain.PriceUpdate) *Monitor {
	return &Monitor{engine: engine, updates: updates}
}

// Run processes updates until ctx is cancelled or the channel closes.
// Run MUST be called in its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("Liquidation monitor started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Liquidation monitor stopping")
			return
		case update, ok := <-m.updates:
			if !ok {
				slog.Info("Price update stream closed, monitor stopping")
				return
			}
			if n := m.engine.LiquidateBreached(ctx, update); n > 0 {
				slog.Warn("Liquidation sweep completed",
					slog.String("symbol", update.Symbol),
					slog.String("mark", update.PriceE8.String()),
					slog.Int("liquidated", n))
			}
		}
	}
}
