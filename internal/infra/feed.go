package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

const (
	feedHandshakeTimeout = 10 * time.Second
	feedReadTimeout      = 60 * time.Second
	feedPingInterval     = 25 * time.Second
	feedUpdateBuffer     = 256
)

type feedSubscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type feedTickerMessage struct {
	Symbol     string `json:"symbol"`
	Price      string `json:"price"`
	Confidence int64  `json:"confidence"`
	Timestamp  string `json:"timestamp"` // unix ms
	Publisher  string `json:"publisher"`
}

// Feed streams oracle price ticks over WebSocket. Every tick refreshes the
// Oracle live cache and is forwarded to the updates channel for the
// liquidation monitor. Reconnects forever with exponential backoff.
type Feed struct {
	wsURL   string
	symbols []string
	oracle  *Oracle
	updates chan domain.PriceUpdate

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewFeed creates a price feed worker for the configured markets.
func NewFeed(cfg *Config, oracle *Oracle) *Feed {
	return &Feed{
		wsURL:   cfg.Oracle.WSURL,
		symbols: cfg.Oracle.Symbols,
		oracle:  oracle,
		updates: make(chan domain.PriceUpdate, feedUpdateBuffer),
	}
}

// Updates returns the stream of price changes. Ticks are dropped, not
// blocked on, when the consumer falls behind.
func (f *Feed) Updates() <-chan domain.PriceUpdate {
	return f.updates
}

// Connect starts the connection loop with automatic reconnection.
func (f *Feed) Connect(ctx context.Context) error {
	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.connectionLoop(ctx)

	return nil
}

// Disconnect stops the worker and waits for the loop to exit.
func (f *Feed) Disconnect() {
	if f.cancel != nil {
		f.cancel()
	}
	f.closeConnection()
	f.wg.Wait()
}

// IsConnected reports whether the socket is currently up.
func (f *Feed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

func (f *Feed) connectionLoop(ctx context.Context) {
	defer f.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Price feed panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Price feed connection loop stopped")
			return
		default:
		}

		err := f.connect(ctx)
		if err != nil {
			slog.Warn("Price feed connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := CalculateBackoff(retryCount)
			retryCount++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		f.readLoop(ctx)
	}
}

func (f *Feed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: feedHandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, f.wsURL, http.Header{})
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	if err := f.subscribe(); err != nil {
		f.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	go f.pingLoop(ctx)

	slog.Info("Price feed connected", slog.Int("symbols", len(f.symbols)))
	return nil
}

func (f *Feed) subscribe() error {
	req := feedSubscribeRequest{Op: "subscribe", Symbols: f.symbols}
	msgBytes, err := json.Marshal(req)
	if err != nil {
		return err
	}

	return f.threadSafeWrite(websocket.TextMessage, msgBytes)
}

func (f *Feed) threadSafeWrite(messageType int, data []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Price feed pingLoop panic recovered", slog.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.threadSafeWrite(websocket.TextMessage, []byte("ping")); err != nil {
				slog.Warn("Price feed ping failed", slog.Any("error", err))
			}
		}
	}
}

func (f *Feed) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Price feed read error", slog.Any("error", err))
			}
			f.closeConnection()
			return
		}

		if string(message) == "pong" {
			continue
		}

		f.handleMessage(message)
	}
}

func (f *Feed) handleMessage(message []byte) {
	var tick feedTickerMessage
	if err := json.Unmarshal(message, &tick); err != nil {
		return
	}
	if tick.Symbol == "" || !f.oracle.Supports(tick.Symbol) {
		return
	}

	px := quant.ToPriceE8Str(tick.Price)
	if px <= 0 {
		return
	}

	ts, err := quant.ParseTimeStamp(tick.Timestamp)
	if err != nil {
		ts = quant.TimeStamp(time.Now().UnixMicro())
	}

	// The oracle is the confidence authority; a rejected tick must not
	// reach the liquidation monitor either.
	accepted := f.oracle.Push(domain.Quote{
		Symbol:     tick.Symbol,
		PriceE8:    px,
		Confidence: tick.Confidence,
		Ts:         ts,
		Publisher:  tick.Publisher,
	})
	if !accepted {
		return
	}

	select {
	case f.updates <- domain.PriceUpdate{Symbol: tick.Symbol, PriceE8: px, Ts: ts}:
	default:
		slog.Warn("Price feed updates channel full, dropping tick",
			slog.String("symbol", tick.Symbol))
	}
}

func (f *Feed) closeConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connected = false
}
