package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"crypto-backtest-lab/internal/domain"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClientImpl implements KlineStream using gorilla/websocket against a
// Binance-style combined stream endpoint.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps stream name (e.g. "btcusdt@kline_1h") to channel
	subs   map[string]chan KlineEvent
	subsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for confirmation
	pendingSubs   map[uint64]chan struct{}
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[string]chan KlineEvent),
		pendingSubs: make(map[uint64]chan struct{}),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Compile-time interface check.
var _ KlineStream = (*WSClientImpl)(nil)

// streamName builds the exchange stream identifier for a subscription.
func streamName(symbol string, timeframe domain.Timeframe) string {
	return fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), timeframe)
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeKlines subscribes to kline events for a symbol and timeframe.
func (c *WSClientImpl) SubscribeKlines(ctx context.Context, symbol string, timeframe domain.Timeframe) (<-chan KlineEvent, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}
	if symbol == "" || !timeframe.Valid() {
		return nil, fmt.Errorf("invalid subscription: symbol=%q timeframe=%q", symbol, timeframe)
	}

	stream := streamName(symbol, timeframe)

	c.subsMu.Lock()
	if _, exists := c.subs[stream]; exists {
		c.subsMu.Unlock()
		return nil, fmt.Errorf("already subscribed to %s", stream)
	}
	c.subsMu.Unlock()

	if err := c.sendSubscribe(ctx, stream); err != nil {
		return nil, err
	}

	// Large buffer absorbs bursts; blocking send means no event loss
	ch := make(chan KlineEvent, 10000)
	c.subsMu.Lock()
	c.subs[stream] = ch
	c.subsMu.Unlock()

	return ch, nil
}

// sendSubscribe sends a SUBSCRIBE request and waits for the ack.
func (c *WSClientImpl) sendSubscribe(ctx context.Context, stream string) error {
	reqID := c.requestID.Add(1)

	req := wsRequest{
		Method: "SUBSCRIBE",
		Params: []string{stream},
		ID:     reqID,
	}

	confirmCh := make(chan struct{}, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		dropPending()
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		dropPending()
		return fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case <-confirmCh:
		return nil
	case <-time.After(30 * time.Second):
		dropPending()
		return fmt.Errorf("subscription timeout after 30s")
	case <-c.done:
		return fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for stream, ch := range c.subs {
		close(ch)
		delete(c.subs, stream)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error, reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.resubscribeAll()
}

// resubscribeAll re-sends SUBSCRIBE for every active stream after reconnect.
// Channels survive reconnects; the stream name is the stable key.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	streams := make([]string, 0, len(c.subs))
	for stream := range c.subs {
		streams = append(streams, stream)
	}
	c.subsMu.RUnlock()

	for _, stream := range streams {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.sendSubscribe(ctx, stream)
		cancel()
		if err != nil {
			// Failed to resubscribe; next reconnect retries
			continue
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	// Subscription ack: {"result":null,"id":N}
	var ack wsSubscribeAck
	if err := json.Unmarshal(message, &ack); err == nil && ack.ID > 0 {
		c.handleSubscribeAck(&ack)
		return
	}

	// Kline event
	var event wsKlineEvent
	if err := json.Unmarshal(message, &event); err == nil && event.EventType == "kline" {
		c.handleKlineEvent(&event)
		return
	}
}

// handleSubscribeAck confirms a pending subscription request.
func (c *WSClientImpl) handleSubscribeAck(ack *wsSubscribeAck) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[ack.ID]
	if ok {
		delete(c.pendingSubs, ack.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// handleKlineEvent dispatches a kline update to its subscriber.
func (c *WSClientImpl) handleKlineEvent(event *wsKlineEvent) {
	k := event.Kline
	candle, err := k.toCandle()
	if err != nil {
		// Malformed payload from the exchange; drop it
		return
	}

	notif := KlineEvent{
		Symbol:    event.Symbol,
		Timeframe: domain.Timeframe(k.Interval),
		Candle:    candle,
		Closed:    k.Closed,
	}

	stream := streamName(event.Symbol, notif.Timeframe)

	c.subsMu.RLock()
	ch, ok := c.subs[stream]
	c.subsMu.RUnlock()

	if ok {
		// Block until we can send - never drop events
		select {
		case ch <- notif:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     uint64   `json:"id"`
}

type wsSubscribeAck struct {
	Result json.RawMessage `json:"result"`
	ID     uint64          `json:"id"`
}

type wsKlineEvent struct {
	EventType string  `json:"e"`
	EventTime int64   `json:"E"`
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsKline struct {
	OpenTimeMs int64  `json:"t"`
	Symbol     string `json:"s"`
	Interval   string `json:"i"`
	Open       string `json:"o"`
	High       string `json:"h"`
	Low        string `json:"l"`
	Close      string `json:"c"`
	Volume     string `json:"v"`
	Closed     bool   `json:"x"`
}

// toCandle converts the string-encoded exchange payload into a candle.
func (k wsKline) toCandle() (domain.Candle, error) {
	var (
		c   domain.Candle
		err error
	)
	c.TimestampMs = k.OpenTimeMs
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse open: %w", err)
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse high: %w", err)
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse low: %w", err)
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse close: %w", err)
	}
	if c.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse volume: %w", err)
	}
	return c, c.Validate()
}
