package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"crypto-backtest-lab/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ackSubscribe reads one SUBSCRIBE request and acknowledges it.
func ackSubscribe(t *testing.T, conn *websocket.Conn) wsRequest {
	t.Helper()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read subscribe: %v", err)
	}

	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.Method != "SUBSCRIBE" {
		t.Errorf("expected SUBSCRIBE, got %s", req.Method)
	}

	ack := map[string]any{"result": nil, "id": req.ID}
	if err := conn.WriteJSON(ack); err != nil {
		t.Fatalf("write ack: %v", err)
	}
	return req
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		req := ackSubscribe(t, conn)
		if len(req.Params) != 1 || req.Params[0] != "btcusdt@kline_1h" {
			t.Errorf("unexpected params: %v", req.Params)
		}

		// Push one closed kline
		event := map[string]any{
			"e": "kline", "E": 1700000100000, "s": "BTCUSDT",
			"k": map[string]any{
				"t": 1700000000000, "s": "BTCUSDT", "i": "1h",
				"o": "50000", "h": "50200", "l": "49900", "c": "50100",
				"v": "12.5", "x": true,
			},
		}
		if err := conn.WriteJSON(event); err != nil {
			t.Errorf("write event: %v", err)
			return
		}

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeKlines(ctx, "BTCUSDT", domain.Timeframe1h)
	if err != nil {
		t.Fatalf("SubscribeKlines: %v", err)
	}

	select {
	case event := <-ch:
		if event.Symbol != "BTCUSDT" {
			t.Errorf("expected symbol BTCUSDT, got %s", event.Symbol)
		}
		if event.Timeframe != domain.Timeframe1h {
			t.Errorf("expected timeframe 1h, got %s", event.Timeframe)
		}
		if !event.Closed {
			t.Error("expected closed kline")
		}
		if event.Candle.Close != 50100 {
			t.Errorf("expected close 50100, got %f", event.Candle.Close)
		}
		if event.Candle.TimestampMs != 1700000000000 {
			t.Errorf("unexpected open time: %d", event.Candle.TimestampMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for kline event")
	}
}

func TestWSClient_DuplicateSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		ackSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeKlines(ctx, "BTCUSDT", domain.Timeframe1h); err != nil {
		t.Fatalf("first SubscribeKlines: %v", err)
	}
	if _, err := client.SubscribeKlines(ctx, "BTCUSDT", domain.Timeframe1h); err == nil {
		t.Error("expected error for duplicate subscription")
	}
}

func TestWSClient_MalformedKlineDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		ackSubscribe(t, conn)

		// Unparseable price, then a good one
		bad := map[string]any{
			"e": "kline", "s": "BTCUSDT",
			"k": map[string]any{
				"t": 1700000000000, "i": "1h",
				"o": "garbage", "h": "50200", "l": "49900", "c": "50100",
				"v": "12.5", "x": true,
			},
		}
		good := map[string]any{
			"e": "kline", "s": "BTCUSDT",
			"k": map[string]any{
				"t": 1700003600000, "i": "1h",
				"o": "50100", "h": "50300", "l": "50000", "c": "50250",
				"v": "8.2", "x": true,
			},
		}
		if err := conn.WriteJSON(bad); err != nil {
			return
		}
		if err := conn.WriteJSON(good); err != nil {
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeKlines(ctx, "BTCUSDT", domain.Timeframe1h)
	if err != nil {
		t.Fatalf("SubscribeKlines: %v", err)
	}

	select {
	case event := <-ch:
		// The malformed event must have been skipped
		if event.Candle.TimestampMs != 1700003600000 {
			t.Errorf("expected the well-formed kline, got timestamp %d", event.Candle.TimestampMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for kline event")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		ackSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	ch, err := client.SubscribeKlines(ctx, "BTCUSDT", domain.Timeframe1h)
	if err != nil {
		t.Fatalf("SubscribeKlines: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Channel must be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Close")
	}

	// Second close is a no-op
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
