package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/internal/infra"
	"github.com/thedudeontitan/ouro-fi/internal/storage"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
	"github.com/thedudeontitan/ouro-fi/pkg/safe"
)

const positionSeqKey = "position_seq"

// Config holds the engine's risk parameters.
type Config struct {
	MinLeverage    int64
	MaxLeverage    int64
	SafetyRatioBps int64 // Liquidation safety-margin ratio r, in basis points (9500 = 0.95)
	TradingFeeBps  int64 // Fee on margin at open and on |pnl| at close
	CallTimeout    time.Duration
	SettleAttempts int
	Symbols        []string
}

// DefaultConfig returns the engine defaults used when a field is zero.
func DefaultConfig() Config {
	return Config{
		MinLeverage:    1,
		MaxLeverage:    100,
		SafetyRatioBps: 9500,
		TradingFeeBps:  10,
		CallTimeout:    5 * time.Second,
		SettleAttempts: 3,
	}
}

// Engine orchestrates position lifecycle against its injected collaborators.
// All external sources are passed in explicitly; the engine holds no global
// state.
type Engine struct {
	cfg        Config
	supported  map[string]bool
	prices     domain.PriceSource
	collateral domain.CollateralSource
	settle     domain.SettlementSubmitter
	book       *storage.Book
	journal    *storage.Journal

	idSeq uint64

	// Per-trader mutexes serialize the margin check with the insert
	// (check-then-act). Different traders never contend.
	lockMu      sync.Mutex
	traderLocks map[string]*sync.Mutex

	wg sync.WaitGroup // In-flight settlement submissions
}

// New creates an engine. journal may be nil (no durable settlement record).
func New(cfg Config, prices domain.PriceSource, collateral domain.CollateralSource,
	settle domain.SettlementSubmitter, book *storage.Book, journal *storage.Journal) *Engine {

	def := DefaultConfig()
	if cfg.MinLeverage == 0 {
		cfg.MinLeverage = def.MinLeverage
	}
	if cfg.MaxLeverage == 0 {
		cfg.MaxLeverage = def.MaxLeverage
	}
	if cfg.SafetyRatioBps == 0 {
		cfg.SafetyRatioBps = def.SafetyRatioBps
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.SettleAttempts == 0 {
		cfg.SettleAttempts = def.SettleAttempts
	}

	supported := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		supported[s] = true
	}

	return &Engine{
		cfg:         cfg,
		supported:   supported,
		prices:      prices,
		collateral:  collateral,
		settle:      settle,
		book:        book,
		journal:     journal,
		traderLocks: make(map[string]*sync.Mutex),
	}
}

// RestoreSequence loads the persisted position id sequence from the journal
// so ids stay unique across restarts.
func (e *Engine) RestoreSequence(ctx context.Context) error {
	if e.journal == nil {
		return nil
	}
	v, err := e.journal.GetMetadata(ctx, positionSeqKey)
	if err != nil {
		return fmt.Errorf("failed to restore position sequence: %w", err)
	}
	if v == "" {
		return nil
	}
	seq, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt position sequence %q: %w", v, err)
	}
	e.idSeq = seq
	slog.Info("Position sequence restored", slog.Uint64("seq", seq))
	return nil
}

// OpenPosition validates the order, checks collateral, and records a new
// position. The availability check and the insert happen under the trader's
// lock so two concurrent opens cannot both pass against a stale margin
// figure. Creation is all-or-nothing: if ctx is abandoned before the insert,
// nothing is stored.
func (e *Engine) OpenPosition(ctx context.Context, trader, symbol string, leverage int64, isLong bool, margin quant.AmountE6) (domain.Position, error) {
	if margin <= 0 {
		return domain.Position{}, fmt.Errorf("%w: margin must be positive, got %d", domain.ErrInvalidParameter, margin)
	}
	if leverage < e.cfg.MinLeverage || leverage > e.cfg.MaxLeverage {
		return domain.Position{}, fmt.Errorf("%w: leverage %d outside [%d, %d]",
			domain.ErrInvalidParameter, leverage, e.cfg.MinLeverage, e.cfg.MaxLeverage)
	}
	if !e.supported[symbol] {
		return domain.Position{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, symbol)
	}

	lock := e.traderLock(trader)
	lock.Lock()
	defer lock.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	wallet, err := e.collateral.GetAvailableCollateral(callCtx, trader)
	if err != nil {
		return domain.Position{}, fmt.Errorf("collateral balance fetch: %w", err)
	}
	used := e.marginUsed(trader)
	available := safe.SafeSub(int64(wallet), int64(used))
	if int64(margin) > available {
		return domain.Position{}, fmt.Errorf("%w: requested %d, available %d",
			domain.ErrInsufficientCollateral, margin, available)
	}

	entry, err := e.prices.GetPrice(callCtx, symbol)
	if err != nil {
		return domain.Position{}, fmt.Errorf("mark price fetch: %w", err)
	}

	pos := domain.Position{
		ID:            quant.NextSeq(&e.idSeq),
		Trader:        trader,
		Symbol:        symbol,
		IsLong:        isLong,
		Leverage:      leverage,
		MarginE6:      margin,
		EntryPriceE8:  entry,
		SizeE6:        quant.AmountE6(safe.SafeMul(int64(margin), leverage)),
		LiqPriceE8:    LiquidationPrice(entry, leverage, isLong, e.cfg.SafetyRatioBps),
		OpenedAtUnixM: time.Now().UnixMicro(),
		Status:        domain.StatusOpen,
	}

	// Caller abandoned the request: nothing has been stored yet.
	if err := ctx.Err(); err != nil {
		return domain.Position{}, err
	}

	if err := e.book.Open(&pos); err != nil {
		slog.Error("POSITION_INSERT_REJECTED", slog.Uint64("id", pos.ID), slog.Any("error", err))
		return domain.Position{}, err
	}

	dec := domain.SettlementDecision{
		Kind:     domain.SettleOpen,
		Position: pos,
		FeeE6:    e.fee(int64(margin)),
	}
	e.recordAndSubmit(dec, func() {
		// Terminal ledger failure: roll the open back.
		lock := e.traderLock(trader)
		lock.Lock()
		defer lock.Unlock()
		if _, err := e.book.Close(pos.ID); err != nil {
			slog.Error("OPEN_ROLLBACK_FAILED", slog.Uint64("id", pos.ID), slog.Any("error", err))
		}
	})

	slog.Info("Position opened",
		slog.Uint64("id", pos.ID),
		slog.String("trader", trader),
		slog.String("symbol", symbol),
		slog.Bool("long", isLong),
		slog.Int64("leverage", leverage),
		slog.String("margin", margin.String()),
		slog.String("entry", entry.String()),
		slog.String("liq", pos.LiqPriceE8.String()))

	return pos, nil
}

// ClosePosition removes the trader's position and settles its realized PnL
// at the current mark price. Returns the closed position and the realized
// PnL in collateral micro-units.
func (e *Engine) ClosePosition(ctx context.Context, trader string, id uint64) (domain.Position, quant.AmountE6, error) {
	lock := e.traderLock(trader)
	lock.Lock()
	defer lock.Unlock()

	pos, err := e.book.Get(id)
	if err != nil {
		return domain.Position{}, 0, err
	}
	if pos.Trader != trader {
		// Do not leak other traders' positions; same error as absence.
		return domain.Position{}, 0, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	exit, err := e.prices.GetPrice(callCtx, pos.Symbol)
	if err != nil {
		return domain.Position{}, 0, fmt.Errorf("mark price fetch: %w", err)
	}

	removed, err := e.book.Close(id)
	if err != nil {
		return domain.Position{}, 0, err
	}
	removed.Status = domain.StatusClosed

	pnl := UnrealizedPnL(removed, exit)
	dec := e.exitDecision(domain.SettleClose, *removed, exit, pnl)
	e.recordAndSubmit(dec, func() {
		// Terminal ledger failure: restore the position.
		lock := e.traderLock(trader)
		lock.Lock()
		defer lock.Unlock()
		reopened := *removed
		reopened.Status = domain.StatusOpen
		if err := e.book.Open(&reopened); err != nil {
			slog.Error("CLOSE_ROLLBACK_FAILED", slog.Uint64("id", id), slog.Any("error", err))
		}
	})

	slog.Info("Position closed",
		slog.Uint64("id", id),
		slog.String("trader", trader),
		slog.String("exit", exit.String()),
		slog.String("pnl", pnl.String()))

	return *removed, pnl, nil
}

// Liquidate force-closes a breached position at the given mark price. The
// breach is re-checked under the trader's lock; a stale report is a no-op.
func (e *Engine) Liquidate(ctx context.Context, id uint64, price quant.PriceE8) (bool, error) {
	pos, err := e.book.Get(id)
	if err != nil {
		return false, err
	}

	lock := e.traderLock(pos.Trader)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the position may have closed meanwhile.
	current, err := e.book.Get(id)
	if err != nil {
		return false, nil
	}
	if !ShouldLiquidate(&current, price) {
		return false, nil
	}

	removed, err := e.book.Close(id)
	if err != nil {
		return false, nil
	}
	removed.Status = domain.StatusLiquidated

	pnl := UnrealizedPnL(removed, price)
	dec := e.exitDecision(domain.SettleLiquidate, *removed, price, pnl)
	e.recordAndSubmit(dec, nil)

	slog.Warn("Position liquidated",
		slog.Uint64("id", id),
		slog.String("trader", removed.Trader),
		slog.String("symbol", removed.Symbol),
		slog.String("mark", price.String()),
		slog.String("threshold", removed.LiqPriceE8.String()))

	return true, nil
}

// LiquidateBreached scans every open position on the updated symbol and
// liquidates those whose threshold the new price breaches. Returns the
// number of positions liquidated.
func (e *Engine) LiquidateBreached(ctx context.Context, update domain.PriceUpdate) int {
	n := 0
	for _, pos := range e.book.ListSymbol(update.Symbol) {
		if !ShouldLiquidate(&pos, update.PriceE8) {
			continue
		}
		done, err := e.Liquidate(ctx, pos.ID, update.PriceE8)
		if err != nil {
			slog.Error("Liquidation failed", slog.Uint64("id", pos.ID), slog.Any("error", err))
			continue
		}
		if done {
			n++
		}
	}
	return n
}

// Snapshot computes the trader's portfolio roll-up at current prices.
func (e *Engine) Snapshot(ctx context.Context, trader string) (domain.PortfolioSnapshot, error) {
	lock := e.traderLock(trader)
	lock.Lock()
	defer lock.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	wallet, err := e.collateral.GetAvailableCollateral(callCtx, trader)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("collateral balance fetch: %w", err)
	}

	positions := e.book.List(trader)
	return Aggregate(trader, positions, wallet, func(symbol string) (quant.PriceE8, error) {
		return e.prices.GetPrice(callCtx, symbol)
	}), nil
}

// PositionView annotates a position with its current PnL and liquidation
// flag for the display layer.
type PositionView struct {
	domain.Position
	UnrealizedPnLE6 quant.AmountE6 `json:"unrealized_pnl"`
	Liquidatable    bool           `json:"liquidatable"`
	PriceStale      bool           `json:"price_stale"` // Set when the mark price lookup failed
}

// PositionViews returns the trader's open positions with per-position PnL
// and liquidation flags. A failed price lookup marks the view stale rather
// than dropping it.
func (e *Engine) PositionViews(ctx context.Context, trader string) []PositionView {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	positions := e.book.List(trader)
	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		v := PositionView{Position: pos}
		price, err := e.prices.GetPrice(callCtx, pos.Symbol)
		if err != nil {
			v.PriceStale = true
		} else {
			v.UnrealizedPnLE6 = UnrealizedPnL(&pos, price)
			v.Liquidatable = ShouldLiquidate(&pos, price)
		}
		views = append(views, v)
	}
	return views
}

// ListPositions returns the trader's open positions in insertion order.
func (e *Engine) ListPositions(trader string) []domain.Position {
	return e.book.List(trader)
}

// GetPosition returns a single position by id.
func (e *Engine) GetPosition(id uint64) (domain.Position, error) {
	return e.book.Get(id)
}

// Wait blocks until all in-flight settlement submissions have finished.
// Called during graceful shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (e *Engine) traderLock(trader string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	l, ok := e.traderLocks[trader]
	if !ok {
		l = &sync.Mutex{}
		e.traderLocks[trader] = l
	}
	return l
}

// marginUsed sums the trader's posted margin. Caller holds the trader lock.
func (e *Engine) marginUsed(trader string) quant.AmountE6 {
	var used int64
	for _, p := range e.book.List(trader) {
		used = safe.SafeAdd(used, int64(p.MarginE6))
	}
	return quant.AmountE6(used)
}

func (e *Engine) fee(on int64) quant.AmountE6 {
	if e.cfg.TradingFeeBps == 0 {
		return 0
	}
	return quant.AmountE6(safe.MulDiv(on, e.cfg.TradingFeeBps, quant.BpsScale))
}

// exitDecision builds the settlement record for a close or liquidation.
// Payout is margin + pnl - fee, floored at zero (the ledger never claws back
// beyond posted margin).
func (e *Engine) exitDecision(kind domain.SettlementKind, pos domain.Position, exit quant.PriceE8, pnl quant.AmountE6) domain.SettlementDecision {
	absPnL := int64(pnl)
	if absPnL < 0 {
		absPnL = -absPnL
	}
	fee := e.fee(absPnL)
	payout := safe.SafeSub(safe.SafeAdd(int64(pos.MarginE6), int64(pnl)), int64(fee))
	if payout < 0 {
		payout = 0
	}
	return domain.SettlementDecision{
		Kind:          kind,
		Position:      pos,
		ExitPriceE8:   exit,
		RealizedPnLE6: pnl,
		PayoutE6:      quant.AmountE6(payout),
		FeeE6:         fee,
	}
}

// recordAndSubmit journals the decision and submits it to the ledger in the
// background. Submission is best-effort with bounded retries; on terminal
// failure the journal entry is revoked and rollback (if any) runs.
func (e *Engine) recordAndSubmit(dec domain.SettlementDecision, rollback func()) {
	var seq int64
	if e.journal != nil {
		ctx := context.Background()
		var err error
		seq, err = e.journal.Record(ctx, dec, time.Now().UnixMicro())
		if err != nil {
			// The journal is local state, not the ledger; keep going.
			slog.Error("JOURNAL_RECORD_FAILED", slog.Uint64("position", dec.Position.ID), slog.Any("error", err))
			seq = 0
		}
		if err := e.journal.UpsertMetadata(ctx, positionSeqKey,
			strconv.FormatUint(e.idSeq, 10), time.Now().UnixMicro()); err != nil {
			slog.Error("JOURNAL_SEQ_PERSIST_FAILED", slog.Any("error", err))
		}
	}

	if e.settle == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx := context.Background()
		var lastErr error
		for attempt := 0; attempt < e.cfg.SettleAttempts; attempt++ {
			if attempt > 0 {
				time.Sleep(infra.CalculateBackoff(attempt - 1))
			}
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
			token, err := e.settle.Submit(callCtx, dec)
			cancel()
			if err == nil {
				if e.journal != nil && seq != 0 {
					if err := e.journal.Confirm(ctx, seq, token); err != nil {
						slog.Error("JOURNAL_CONFIRM_FAILED", slog.Int64("seq", seq), slog.Any("error", err))
					}
				}
				return
			}
			lastErr = err
			slog.Warn("Settlement submit failed",
				slog.Uint64("position", dec.Position.ID),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err))
		}

		slog.Error("SETTLEMENT_SUBMIT_EXHAUSTED",
			slog.Uint64("position", dec.Position.ID),
			slog.String("kind", string(dec.Kind)),
			slog.Any("error", lastErr))
		if e.journal != nil && seq != 0 {
			if err := e.journal.Revoke(ctx, seq); err != nil {
				slog.Error("JOURNAL_REVOKE_FAILED", slog.Int64("seq", seq), slog.Any("error", err))
			}
		}
		if rollback != nil {
			rollback()
		}
	}()
}
