package api

import (
	"encoding/json"
	"testing"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/engine"
)

// Publish delivers synchronously through subscription filtering; only
// clients subscribed to the events channel see engine signals.
func TestHubPublishRespectsSubscriptions(t *testing.T) {
	h := NewHub()

	sub := &Client{hub: h, send: make(chan []byte, 8), id: "sub", subscriptions: make(map[string]bool)}
	idle := &Client{hub: h, send: make(chan []byte, 8), id: "idle", subscriptions: make(map[string]bool)}
	h.mu.Lock()
	h.clients[sub] = true
	h.clients[idle] = true
	h.mu.Unlock()
	sub.Subscribe(EventsChannel)

	h.Publish(engine.Event{Type: engine.EventOrderCreated, OrderID: 7})

	select {
	case raw := <-sub.send:
		var ev engine.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != engine.EventOrderCreated || ev.OrderID != 7 {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case <-idle.send:
		t.Error("unsubscribed client received an event")
	default:
	}
}
