package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHandleMessageBookEvent(t *testing.T) {
	s := NewMarketStream(Config{})

	s.handleMessage([]byte(`{
		"event_type": "book",
		"asset_id": "7134",
		"market": "0xcond",
		"timestamp": "123456789",
		"bids": [{"price": "0.48", "size": "100"}, {"price": "0.55", "size": "30"}],
		"asks": [{"price": "0.60", "size": "15"}]
	}`))

	select {
	case ev := <-s.Events():
		if ev.EventType != EventBook {
			t.Fatalf("event type = %s, want book", ev.EventType)
		}
		book := ev.Book()
		if book == nil {
			t.Fatal("book event must convert to a snapshot")
		}
		if book.AssetID != "7134" || len(book.Bids) != 2 || len(book.Asks) != 1 {
			t.Fatalf("unexpected snapshot: %+v", book)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestHandleMessageBatch(t *testing.T) {
	s := NewMarketStream(Config{})

	s.handleMessage([]byte(`[
		{"event_type": "price_change", "asset_id": "a1", "price": "0.51"},
		{"event_type": "last_trade_price", "asset_id": "a2", "price": "0.52"}
	]`))

	if got := len(s.events); got != 2 {
		t.Fatalf("delivered %d events, want 2", got)
	}
}

func TestHandleMessageIgnoresKeepaliveAndGarbage(t *testing.T) {
	s := NewMarketStream(Config{})

	s.handleMessage([]byte("PONG"))
	s.handleMessage([]byte("  "))
	s.handleMessage([]byte("{not json"))
	s.handleMessage([]byte(`{"asset_id": "x"}`)) // missing event_type

	if got := len(s.events); got != 0 {
		t.Fatalf("delivered %d events, want 0", got)
	}
}

func TestNonBookEventHasNoSnapshot(t *testing.T) {
	ev := Event{EventType: EventPriceChange, AssetID: "a1", Price: "0.5"}
	if ev.Book() != nil {
		t.Fatal("price_change must not convert to a book snapshot")
	}
}

func TestSubscribeTracksAssetsWhenDisconnected(t *testing.T) {
	s := NewMarketStream(Config{})

	err := s.Subscribe("a1", "a2")
	if err == nil {
		t.Fatal("subscribe without a connection must fail")
	}
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	if len(s.subs) != 2 {
		t.Fatalf("tracked %d subscriptions, want 2 for resubscribe after connect", len(s.subs))
	}
}

func TestStreamAgainstTestServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan map[string]interface{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscription: %v", err)
			return
		}
		received <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event_type": "book",
			"asset_id": "a1",
			"bids": [{"price": "0.4", "size": "10"}],
			"asks": [{"price": "0.6", "size": "10"}]
		}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewMarketStream(Config{URL: wsURL, MaxReconnectAttempts: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.Subscribe("a1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case sub := <-received:
		if sub["type"] != "market" {
			t.Fatalf("subscription type = %v, want market", sub["type"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the subscription")
	}

	select {
	case ev := <-s.Events():
		if ev.EventType != EventBook || ev.AssetID != "a1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no book event delivered")
	}
}
