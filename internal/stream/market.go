package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/pkg/logger"
)

// DefaultMarketURL is the exchange's public market channel.
const DefaultMarketURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

const (
	// The exchange accepts at most 100 assets per subscription message.
	maxSubscribeBatch = 100

	defaultPingInterval   = 10 * time.Second
	defaultReconnectDelay = 2 * time.Second
	maxReconnectDelay     = 30 * time.Second
	dialRetries           = 3
)

// EventType tags a market channel message.
type EventType string

const (
	EventBook           EventType = "book"
	EventPriceChange    EventType = "price_change"
	EventLastTradePrice EventType = "last_trade_price"
	EventTickSizeChange EventType = "tick_size_change"
)

// Event is one market channel message. Book events carry a full
// snapshot in Bids/Asks; price events carry Price.
type Event struct {
	EventType EventType            `json:"event_type"`
	AssetID   string               `json:"asset_id"`
	Market    string               `json:"market"`
	Timestamp string               `json:"timestamp"`
	Price     string               `json:"price,omitempty"`
	Hash      string               `json:"hash,omitempty"`
	Bids      []types.OrderSummary `json:"bids,omitempty"`
	Asks      []types.OrderSummary `json:"asks,omitempty"`
	TickSize  string               `json:"tick_size,omitempty"`
}

// Book converts a book event into the REST snapshot shape so the two
// sources are interchangeable for consumers.
func (e *Event) Book() *types.OrderBookSummary {
	if e.EventType != EventBook {
		return nil
	}
	return &types.OrderBookSummary{
		Market:    e.Market,
		AssetID:   e.AssetID,
		Timestamp: e.Timestamp,
		Bids:      e.Bids,
		Asks:      e.Asks,
		Hash:      e.Hash,
	}
}

// Config tunes a MarketStream. The zero value works.
type Config struct {
	URL                  string
	ProxyURL             string
	PingInterval         time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	EventBuffer          int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.URL == "" {
		out.URL = DefaultMarketURL
	}
	if out.PingInterval <= 0 {
		out.PingInterval = defaultPingInterval
	}
	if out.ReconnectDelay <= 0 {
		out.ReconnectDelay = defaultReconnectDelay
	}
	if out.MaxReconnectAttempts <= 0 {
		out.MaxReconnectAttempts = 10
	}
	if out.EventBuffer <= 0 {
		out.EventBuffer = 1000
	}
	return out
}

// MarketStream maintains one market channel connection with automatic
// reconnect and resubscribe. Events are delivered on a buffered
// channel; a full channel drops the event rather than blocking the
// read loop.
type MarketStream struct {
	cfg Config

	connMu sync.Mutex
	conn   *websocket.Conn

	subMu sync.RWMutex
	subs  map[string]bool

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}

	reconnectMu       sync.Mutex
	reconnectAttempts int

	running   bool
	runningMu sync.Mutex
}

func NewMarketStream(cfg Config) *MarketStream {
	cfg = cfg.withDefaults()
	return &MarketStream{
		cfg:    cfg,
		subs:   make(map[string]bool),
		events: make(chan Event, cfg.EventBuffer),
		doneCh: make(chan struct{}),
	}
}

// Start connects and launches the read and ping loops. The stream runs
// until Stop or ctx cancellation.
func (s *MarketStream) Start(ctx context.Context) error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return fmt.Errorf("market stream already running")
	}
	s.running = true
	s.runningMu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.connect(); err != nil {
		s.runningMu.Lock()
		s.running = false
		s.runningMu.Unlock()
		return fmt.Errorf("market stream connect: %w", err)
	}

	go s.readLoop()
	go s.pingLoop()

	logger.Infof("stream: connected to %s", s.cfg.URL)
	return nil
}

// Stop closes the connection and waits for the read loop to exit.
func (s *MarketStream) Stop() {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return
	}
	s.running = false
	s.runningMu.Unlock()

	s.cancel()

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		logger.Warn("stream: shutdown timed out")
	}
}

// Subscribe adds asset IDs to the market subscription.
func (s *MarketStream) Subscribe(assetIDs ...string) error {
	s.subMu.Lock()
	fresh := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if !s.subs[id] {
			s.subs[id] = true
			fresh = append(fresh, id)
		}
	}
	s.subMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return s.send("market", fresh)
}

// Unsubscribe removes asset IDs from the subscription.
func (s *MarketStream) Unsubscribe(assetIDs ...string) error {
	s.subMu.Lock()
	gone := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if s.subs[id] {
			delete(s.subs, id)
			gone = append(gone, id)
		}
	}
	s.subMu.Unlock()

	if len(gone) == 0 {
		return nil
	}
	return s.send("unsubscribe", gone)
}

// Events is the delivery channel.
func (s *MarketStream) Events() <-chan Event {
	return s.events
}

func (s *MarketStream) send(msgType string, assetIDs []string) error {
	for i := 0; i < len(assetIDs); i += maxSubscribeBatch {
		end := i + maxSubscribeBatch
		if end > len(assetIDs) {
			end = len(assetIDs)
		}
		msg := map[string]interface{}{
			"type":       msgType,
			"assets_ids": assetIDs[i:end],
		}

		s.connMu.Lock()
		conn := s.conn
		if conn == nil {
			s.connMu.Unlock()
			return fmt.Errorf("not connected")
		}
		err := conn.WriteJSON(msg)
		s.connMu.Unlock()
		if err != nil {
			return fmt.Errorf("send %s: %w", msgType, err)
		}
	}
	return nil
}

func (s *MarketStream) connect() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		s.conn.Close()
	}

	dialer := websocket.Dialer{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 15 * time.Second,
	}
	if s.cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(s.cfg.ProxyURL)
		if err != nil {
			return fmt.Errorf("proxy url: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	headers := make(http.Header)
	headers.Set("User-Agent", "gotrader/1.0")

	var conn *websocket.Conn
	var err error
	for i := 0; i < dialRetries; i++ {
		conn, _, err = dialer.Dial(s.cfg.URL, headers)
		if err == nil {
			break
		}
		if i < dialRetries-1 {
			logger.Warnf("stream: dial attempt %d/%d failed: %v", i+1, dialRetries, err)
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	if err != nil {
		return err
	}

	s.conn = conn
	s.reconnectMu.Lock()
	s.reconnectAttempts = 0
	s.reconnectMu.Unlock()
	return nil
}

func (s *MarketStream) readLoop() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect() {
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			logger.Warnf("stream: read: %v, reconnecting", err)
			if !s.reconnect() {
				return
			}
			continue
		}

		s.handleMessage(message)
	}
}

// pingLoop sends the exchange's text PING keepalive. The reply is a
// text PONG handled in handleMessage, not a protocol-level pong.
func (s *MarketStream) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				logger.Warnf("stream: ping: %v", err)
			}
		}
	}
}

// reconnect retries with linear backoff capped at maxReconnectDelay.
// Returns false when the attempt budget is spent or the stream is
// shutting down.
func (s *MarketStream) reconnect() bool {
	s.reconnectMu.Lock()
	s.reconnectAttempts++
	attempts := s.reconnectAttempts
	s.reconnectMu.Unlock()

	if attempts > s.cfg.MaxReconnectAttempts {
		logger.Errorf("stream: gave up after %d reconnect attempts", s.cfg.MaxReconnectAttempts)
		return false
	}

	delay := s.cfg.ReconnectDelay * time.Duration(attempts)
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}

	select {
	case <-s.ctx.Done():
		return false
	case <-time.After(delay):
	}

	if err := s.connect(); err != nil {
		logger.Warnf("stream: reconnect %d/%d: %v", attempts, s.cfg.MaxReconnectAttempts, err)
		return true
	}
	if err := s.resubscribe(); err != nil {
		logger.Warnf("stream: resubscribe: %v", err)
	}
	return true
}

func (s *MarketStream) resubscribe() error {
	s.subMu.RLock()
	assetIDs := make([]string, 0, len(s.subs))
	for id := range s.subs {
		assetIDs = append(assetIDs, id)
	}
	s.subMu.RUnlock()

	if len(assetIDs) == 0 {
		return nil
	}
	return s.send("market", assetIDs)
}

func (s *MarketStream) handleMessage(data []byte) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return
	}
	// Keepalive replies arrive as bare text, not JSON.
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return
	}

	if trimmed[0] == '{' {
		var ev Event
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			logger.Debugf("stream: drop unparseable message: %v", err)
			return
		}
		s.deliver(ev)
		return
	}

	var evs []Event
	if err := json.Unmarshal(trimmed, &evs); err != nil {
		logger.Debugf("stream: drop unparseable batch: %v", err)
		return
	}
	for _, ev := range evs {
		s.deliver(ev)
	}
}

func (s *MarketStream) deliver(ev Event) {
	if ev.EventType == "" {
		return
	}
	select {
	case s.events <- ev:
	default:
		logger.Debugf("stream: event buffer full, dropping %s for %s", ev.EventType, ev.AssetID)
	}
}
