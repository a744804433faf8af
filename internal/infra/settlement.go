package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
)

type ledgerSubmitResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// LedgerClient submits settlement decisions to the external ledger over
// HTTP. The ledger mints the confirmation token; an empty token in a 200
// response is treated as a failed submission.
type LedgerClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

// NewLedgerClient creates a ledger client from config.
func NewLedgerClient(cfg *Config) *LedgerClient {
	return &LedgerClient{
		url:    cfg.Ledger.URL,
		apiKey: cfg.Ledger.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig("ledger")),
	}
}

// Submit records the decision on the ledger and returns its token.
func (c *LedgerClient) Submit(ctx context.Context, dec domain.SettlementDecision) (string, error) {
	if !c.breaker.Allow() {
		return "", fmt.Errorf("ledger circuit open (state=%s)", c.breaker.GetState())
	}

	body, err := json.Marshal(dec)
	if err != nil {
		return "", fmt.Errorf("settlement encode failed: %w", err)
	}

	endpoint := c.url + "/v1/settlements"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return "", fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.breaker.RecordFailure()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ledgerSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.breaker.RecordFailure()
		return "", fmt.Errorf("ledger response parse failed: %w", err)
	}
	if parsed.Token == "" {
		c.breaker.RecordFailure()
		if parsed.Error != "" {
			return "", fmt.Errorf("ledger rejected settlement: %s", parsed.Error)
		}
		return "", fmt.Errorf("ledger returned empty token")
	}

	c.breaker.RecordSuccess()
	return parsed.Token, nil
}

// MemoryLedger is the paper-mode settlement sink. It mints its own tokens
// and keeps every accepted decision in memory for inspection.
type MemoryLedger struct {
	mu       sync.Mutex
	accepted map[string]domain.SettlementDecision
}

// NewMemoryLedger creates an empty in-memory settlement sink.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accepted: make(map[string]domain.SettlementDecision),
	}
}

// Submit accepts the decision and returns a fresh token.
func (m *MemoryLedger) Submit(ctx context.Context, dec domain.SettlementDecision) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := uuid.NewString()
	m.mu.Lock()
	m.accepted[token] = dec
	m.mu.Unlock()
	return token, nil
}

// Lookup returns the decision recorded under a token.
func (m *MemoryLedger) Lookup(token string) (domain.SettlementDecision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dec, ok := m.accepted[token]
	return dec, ok
}

// Count returns the number of accepted settlements.
func (m *MemoryLedger) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accepted)
}
