package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

// oracleQuoteResponse represents the oracle REST API response for one symbol.
type oracleQuoteResponse struct {
	Symbol     string `json:"symbol"`
	Price      string `json:"price"` // decimal string, e.g. "4012.55"
	Confidence int64  `json:"confidence"`
	Timestamp  string `json:"timestamp"` // unix ms
	Publisher  string `json:"publisher"`
}

// Oracle serves mark prices for the supported markets. Resolution order:
// live feed cache (pushed by the websocket stream), REST fetch, then the
// static fallback table. A supported symbol always resolves to some price;
// only a missing fallback entry yields ErrPriceUnavailable, and Validate
// rejects that configuration at startup.
type Oracle struct {
	restURL       string
	supported     map[string]struct{}
	fallback      map[string]quant.PriceE8
	minConfidence int64
	staleAfter    time.Duration

	httpClient *http.Client
	breaker    *CircuitBreaker
	limiter    *RateLimiter

	mu   sync.RWMutex
	live map[string]domain.Quote
}

// NewOracle builds the price source from config. An empty REST URL
// (paper mode) skips the fetch path and serves cache-then-fallback only.
func NewOracle(cfg *Config) *Oracle {
	supported := make(map[string]struct{}, len(cfg.Oracle.Symbols))
	for _, sym := range cfg.Oracle.Symbols {
		supported[sym] = struct{}{}
	}

	staleAfter := time.Duration(cfg.Oracle.StaleAfterSec) * time.Second
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}

	return &Oracle{
		restURL:       cfg.Oracle.RestURL,
		supported:     supported,
		fallback:      cfg.FallbackTable(),
		minConfidence: cfg.Oracle.MinConfidence,
		staleAfter:    staleAfter,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig("oracle")),
		limiter: NewRateLimiter(10, 10),
		live:    make(map[string]domain.Quote),
	}
}

// Supports reports whether the symbol is a listed market.
func (o *Oracle) Supports(symbol string) bool {
	_, ok := o.supported[symbol]
	return ok
}

// Push records a streamed price observation in the live cache and reports
// whether it was accepted. A quote below the minimum confidence is a feed
// error, not a price: it never enters the cache, regardless of transport.
// Called by the websocket feed on every tick.
func (o *Oracle) Push(q domain.Quote) bool {
	if !o.Supports(q.Symbol) {
		return false
	}
	if q.Confidence < o.minConfidence {
		slog.Warn("Oracle tick below minimum confidence, dropping",
			slog.String("symbol", q.Symbol),
			slog.Int64("confidence", q.Confidence),
			slog.Int64("min", o.minConfidence),
		)
		return false
	}
	o.mu.Lock()
	o.live[q.Symbol] = q
	o.mu.Unlock()
	return true
}

// GetPrice returns the current mark price for a supported symbol.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) (quant.PriceE8, error) {
	q, err := o.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.PriceE8, nil
}

// GetQuote returns the full price observation for a supported symbol.
func (o *Oracle) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if !o.Supports(symbol) {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, symbol)
	}

	// 1. Fresh live cache entry wins.
	if q, ok := o.cached(symbol); ok {
		return q, nil
	}

	// 2. REST fetch (live mode only).
	if o.restURL != "" {
		q, err := o.fetchQuote(ctx, symbol)
		if err == nil {
			o.Push(q)
			return q, nil
		}
		slog.Warn("Oracle fetch failed, using fallback price",
			slog.String("symbol", symbol),
			slog.Any("error", err),
		)
	}

	// 3. Static fallback table.
	px, ok := o.fallback[symbol]
	if !ok || px <= 0 {
		return domain.Quote{}, fmt.Errorf("%w: no fallback price for %s", domain.ErrPriceUnavailable, symbol)
	}
	return domain.Quote{
		Symbol:     symbol,
		PriceE8:    px,
		Confidence: 100,
		Ts:         quant.TimeStamp(time.Now().UnixMicro()),
		Publisher:  "fallback",
	}, nil
}

// cached returns the live cache entry if it is still fresh.
func (o *Oracle) cached(symbol string) (domain.Quote, bool) {
	o.mu.RLock()
	q, ok := o.live[symbol]
	o.mu.RUnlock()
	if !ok {
		return domain.Quote{}, false
	}

	age := time.Now().UnixMicro() - int64(q.Ts)
	if age > o.staleAfter.Microseconds() {
		return domain.Quote{}, false
	}
	return q, true
}

func (o *Oracle) fetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if !o.breaker.Allow() {
		return domain.Quote{}, fmt.Errorf("oracle circuit open (state=%s)", o.breaker.GetState())
	}
	o.limiter.Wait()

	endpoint := fmt.Sprintf("%s/v1/price?symbol=%s", o.restURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.breaker.RecordFailure()
		return domain.Quote{}, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		o.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Quote{}, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed oracleQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		o.breaker.RecordFailure()
		return domain.Quote{}, fmt.Errorf("oracle response parse failed: %w", err)
	}

	px := quant.ToPriceE8Str(parsed.Price)
	if px <= 0 {
		o.breaker.RecordFailure()
		return domain.Quote{}, fmt.Errorf("oracle returned non-positive price %q for %s", parsed.Price, symbol)
	}
	if parsed.Confidence < o.minConfidence {
		// The endpoint answered; only the observation is unusable.
		o.breaker.RecordSuccess()
		return domain.Quote{}, fmt.Errorf("oracle confidence %d below minimum %d for %s",
			parsed.Confidence, o.minConfidence, symbol)
	}

	ts, err := quant.ParseTimeStamp(parsed.Timestamp)
	if err != nil {
		ts = quant.TimeStamp(time.Now().UnixMicro())
	}

	o.breaker.RecordSuccess()
	return domain.Quote{
		Symbol:     symbol,
		PriceE8:    px,
		Confidence: parsed.Confidence,
		Ts:         ts,
		Publisher:  parsed.Publisher,
	}, nil
}
