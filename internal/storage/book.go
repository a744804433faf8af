package storage

import (
	"fmt"
	"sync"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
)

// Book is the in-memory position lifecycle store, keyed by position id with
// a per-trader index that preserves insertion order.
//
// Book only guards its own maps; serialization of check-then-act sequences
// (margin check + open) is the engine's responsibility.
type Book struct {
	mu       sync.RWMutex
	byID     map[uint64]*domain.Position
	byTrader map[string][]uint64
}

// NewBook creates an empty position book.
func NewBook() *Book {
	return &Book{
		byID:     make(map[uint64]*domain.Position),
		byTrader: make(map[string][]uint64),
	}
}

// Open inserts a new position. The insert is all-or-nothing: the position is
// fully computed before this call and never filled in afterwards.
func (b *Book) Open(p *domain.Position) error {
	p.VerifyInvariant()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byID[p.ID]; exists {
		return fmt.Errorf("%w: %d", domain.ErrDuplicateID, p.ID)
	}

	stored := *p
	b.byID[p.ID] = &stored
	b.byTrader[p.Trader] = append(b.byTrader[p.Trader], p.ID)
	return nil
}

// Close removes the position and returns it so the caller can settle the
// realized PnL externally.
func (b *Book) Close(id uint64) (*domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}

	delete(b.byID, id)
	ids := b.byTrader[p.Trader]
	for i, pid := range ids {
		if pid == id {
			b.byTrader[p.Trader] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(b.byTrader[p.Trader]) == 0 {
		delete(b.byTrader, p.Trader)
	}

	return p, nil
}

// Get returns a copy of the position.
func (b *Book) Get(id uint64) (domain.Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.byID[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return *p, nil
}

// List returns copies of the trader's open positions in insertion order.
func (b *Book) List(trader string) []domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.byTrader[trader]
	out := make([]domain.Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, *b.byID[id])
	}
	return out
}

// ListSymbol returns copies of every open position on the given symbol,
// across all traders. Used by the liquidation monitor.
func (b *Book) ListSymbol(symbol string) []domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Position
	for _, trader := range b.traderOrder() {
		for _, id := range b.byTrader[trader] {
			if p := b.byID[id]; p.Symbol == symbol {
				out = append(out, *p)
			}
		}
	}
	return out
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// traderOrder returns trader keys in a stable order. Must be called with mu
// held (read or write).
func (b *Book) traderOrder() []string {
	traders := make([]string, 0, len(b.byTrader))
	for t := range b.byTrader {
		traders = append(traders, t)
	}
	// Simple insertion sort (small N)
	for i := 1; i < len(traders); i++ {
		for j := i; j > 0 && traders[j] < traders[j-1]; j-- {
			traders[j], traders[j-1] = traders[j-1], traders[j]
		}
	}
	return traders
}
