package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

func walletConfig(url string) *Config {
	var cfg Config
	cfg.Collateral.URL = url
	return &cfg
}

func TestWalletClient_GetAvailableCollateral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("trader"); got != "TRADER_A" {
			t.Errorf("trader query = %q, want TRADER_A", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trader":"TRADER_A","balance":"1500.25"}`))
	}))
	defer srv.Close()

	c := NewWalletClient(walletConfig(srv.URL))

	bal, err := c.GetAvailableCollateral(context.Background(), "TRADER_A")
	if err != nil {
		t.Fatalf("GetAvailableCollateral failed: %v", err)
	}
	if bal != 1500250000 {
		t.Errorf("balance = %d, want 1500250000", bal)
	}
}

func TestWalletClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wallet down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewWalletClient(walletConfig(srv.URL))

	if _, err := c.GetAvailableCollateral(context.Background(), "TRADER_A"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestWalletClient_NegativeBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trader":"TRADER_A","balance":"-5"}`))
	}))
	defer srv.Close()

	c := NewWalletClient(walletConfig(srv.URL))

	if _, err := c.GetAvailableCollateral(context.Background(), "TRADER_A"); err == nil {
		t.Fatal("expected error for negative balance")
	}
}

func TestStaticCollateral(t *testing.T) {
	s := NewStaticCollateral(map[string]quant.AmountE6{
		"TRADER_A": 1000000000, // 1,000 USDC
	})

	bal, err := s.GetAvailableCollateral(context.Background(), "TRADER_A")
	if err != nil {
		t.Fatalf("GetAvailableCollateral failed: %v", err)
	}
	if bal != 1000000000 {
		t.Errorf("balance = %d, want 1000000000", bal)
	}

	// Unknown trader reports zero, not an error
	bal, err = s.GetAvailableCollateral(context.Background(), "NOBODY")
	if err != nil {
		t.Fatalf("GetAvailableCollateral failed: %v", err)
	}
	if bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}

	s.Set("TRADER_A", 42)
	bal, _ = s.GetAvailableCollateral(context.Background(), "TRADER_A")
	if bal != 42 {
		t.Errorf("balance after Set = %d, want 42", bal)
	}
}
