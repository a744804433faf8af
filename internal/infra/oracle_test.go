package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

func oracleConfig(restURL string) *Config {
	var cfg Config
	cfg.Oracle.RestURL = restURL
	cfg.Oracle.Symbols = []string{"ETHUSD", "BTCUSD"}
	cfg.Oracle.FallbackPrices = map[string]string{
		"ETHUSD": "4000",
		"BTCUSD": "65000",
	}
	cfg.Oracle.MinConfidence = 80
	cfg.Oracle.StaleAfterSec = 30
	return &cfg
}

func TestOracle_UnsupportedSymbol(t *testing.T) {
	o := NewOracle(oracleConfig(""))

	_, err := o.GetPrice(context.Background(), "DOGEUSD")
	if !errors.Is(err, domain.ErrUnsupportedSymbol) {
		t.Errorf("error = %v, want ErrUnsupportedSymbol", err)
	}
}

func TestOracle_FallbackWithoutFeed(t *testing.T) {
	// Paper mode: no REST URL, empty cache. Fallback table must answer.
	o := NewOracle(oracleConfig(""))

	q, err := o.GetQuote(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if q.PriceE8 != 400000000000 {
		t.Errorf("price = %d, want 400000000000", q.PriceE8)
	}
	if q.Publisher != "fallback" {
		t.Errorf("publisher = %q, want fallback", q.Publisher)
	}
}

func TestOracle_LiveCacheWins(t *testing.T) {
	o := NewOracle(oracleConfig(""))

	o.Push(domain.Quote{
		Symbol:     "ETHUSD",
		PriceE8:    412300000000,
		Confidence: 95,
		Ts:         quant.TimeStamp(time.Now().UnixMicro()),
		Publisher:  "stream",
	})

	px, err := o.GetPrice(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if px != 412300000000 {
		t.Errorf("price = %d, want 412300000000", px)
	}
}

func TestOracle_StaleCacheIgnored(t *testing.T) {
	o := NewOracle(oracleConfig(""))

	// A tick from a minute ago is past the 30s staleness window.
	o.Push(domain.Quote{
		Symbol:     "ETHUSD",
		PriceE8:    412300000000,
		Confidence: 95,
		Ts:         quant.TimeStamp(time.Now().Add(-time.Minute).UnixMicro()),
		Publisher:  "stream",
	})

	q, err := o.GetQuote(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if q.Publisher != "fallback" {
		t.Errorf("publisher = %q, want fallback (stale tick must be ignored)", q.Publisher)
	}
}

func TestOracle_LowConfidencePushIgnored(t *testing.T) {
	// A streamed tick below the minimum confidence must be rejected at
	// ingestion: the cache, and every consumer of it, never sees it.
	o := NewOracle(oracleConfig(""))

	accepted := o.Push(domain.Quote{
		Symbol:     "ETHUSD",
		PriceE8:    100000000, // $1 garbage tick
		Confidence: 5,
		Ts:         quant.TimeStamp(time.Now().UnixMicro()),
		Publisher:  "stream",
	})
	if accepted {
		t.Error("Push must reject a tick with confidence 5 < min 80")
	}

	q, err := o.GetQuote(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if q.Publisher != "fallback" {
		t.Errorf("publisher = %q, want fallback (low-confidence tick must not be served)", q.Publisher)
	}
	if q.PriceE8 != 400000000000 {
		t.Errorf("price = %d, want the 400000000000 fallback", q.PriceE8)
	}
}

func TestOracle_RestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSD" {
			t.Errorf("symbol query = %q, want BTCUSD", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSD","price":"64123.5","confidence":97,"timestamp":"1700000000000","publisher":"pyth"}`))
	}))
	defer srv.Close()

	o := NewOracle(oracleConfig(srv.URL))

	q, err := o.GetQuote(context.Background(), "BTCUSD")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if q.PriceE8 != 6412350000000 {
		t.Errorf("price = %d, want 6412350000000", q.PriceE8)
	}
	if q.Publisher != "pyth" {
		t.Errorf("publisher = %q, want pyth", q.Publisher)
	}
}

func TestOracle_RestErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oracle down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOracle(oracleConfig(srv.URL))

	q, err := o.GetQuote(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if q.Publisher != "fallback" {
		t.Errorf("publisher = %q, want fallback", q.Publisher)
	}
	if q.PriceE8 != 400000000000 {
		t.Errorf("price = %d, want 400000000000", q.PriceE8)
	}
}

func TestOracle_LowConfidenceFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ETHUSD","price":"4012","confidence":40,"timestamp":"1700000000000","publisher":"pyth"}`))
	}))
	defer srv.Close()

	o := NewOracle(oracleConfig(srv.URL))

	q, err := o.GetQuote(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if q.Publisher != "fallback" {
		t.Errorf("publisher = %q, want fallback (confidence 40 < min 80)", q.Publisher)
	}
}
