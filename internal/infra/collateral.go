package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

type walletBalanceResponse struct {
	Trader  string `json:"trader"`
	Balance string `json:"balance"` // decimal string, USDC units
}

// WalletClient fetches trader collateral balances from the wallet service.
type WalletClient struct {
	url        string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

// NewWalletClient creates a wallet client from config.
func NewWalletClient(cfg *Config) *WalletClient {
	return &WalletClient{
		url: cfg.Collateral.URL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig("wallet")),
	}
}

// GetAvailableCollateral returns the trader's spendable USDC balance.
func (c *WalletClient) GetAvailableCollateral(ctx context.Context, trader string) (quant.AmountE6, error) {
	if !c.breaker.Allow() {
		return 0, fmt.Errorf("wallet circuit open (state=%s)", c.breaker.GetState())
	}

	endpoint := fmt.Sprintf("%s/v1/balance?trader=%s", c.url, url.QueryEscape(trader))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("wallet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("wallet returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed walletBalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("wallet response parse failed: %w", err)
	}

	bal := quant.ToAmountE6Str(parsed.Balance)
	if bal < 0 {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("wallet returned negative balance %q for %s", parsed.Balance, trader)
	}

	c.breaker.RecordSuccess()
	return bal, nil
}

// UniformCollateral grants every trader the same fixed balance. Paper mode
// uses it so any trader can start without a wallet service.
type UniformCollateral struct {
	balance quant.AmountE6
}

// NewUniformCollateral creates a collateral source with a flat balance.
func NewUniformCollateral(balance quant.AmountE6) *UniformCollateral {
	return &UniformCollateral{balance: balance}
}

// GetAvailableCollateral returns the flat balance for any trader.
func (u *UniformCollateral) GetAvailableCollateral(ctx context.Context, trader string) (quant.AmountE6, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return u.balance, nil
}

// StaticCollateral is the paper-mode collateral source backed by a fixed
// per-trader table. Unknown traders report a zero balance.
type StaticCollateral struct {
	mu       sync.RWMutex
	balances map[string]quant.AmountE6
}

// NewStaticCollateral creates a collateral table seeded from the given map.
func NewStaticCollateral(balances map[string]quant.AmountE6) *StaticCollateral {
	table := make(map[string]quant.AmountE6, len(balances))
	for trader, bal := range balances {
		table[trader] = bal
	}
	return &StaticCollateral{balances: table}
}

// GetAvailableCollateral returns the trader's configured balance.
func (s *StaticCollateral) GetAvailableCollateral(ctx context.Context, trader string) (quant.AmountE6, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[trader], nil
}

// Set updates a trader's balance.
func (s *StaticCollateral) Set(trader string, bal quant.AmountE6) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[trader] = bal
}
