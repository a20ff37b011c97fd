package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a lifecycle signal emitted by the engine.
type EventType string

const (
	EventOrderCreated         EventType = "order_created"
	EventOrderFilled          EventType = "order_filled"
	EventOrderPartiallyFilled EventType = "order_partially_filled"
	EventOrderCancelled       EventType = "order_cancelled"
	EventPluginEnabled        EventType = "plugin_enabled"
	EventPluginDisabled       EventType = "plugin_disabled"
)

// Event is a lifecycle signal. Fill events carry the amounts of the traded
// slice, not the order's full remaining size.
type Event struct {
	Type       EventType      `json:"type"`
	OrderID    uint64         `json:"orderId,omitempty"`
	SellToken  common.Address `json:"sellToken,omitempty"`
	BuyToken   common.Address `json:"buyToken,omitempty"`
	SellAmount *big.Int       `json:"sellAmount,omitempty"`
	BuyAmount  *big.Int       `json:"buyAmount,omitempty"`
	Actor      common.Address `json:"actor"`
	Plugin     string         `json:"plugin,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// EventSink receives lifecycle events. Publish must not call back into the
// settlement surface.
type EventSink interface {
	Publish(Event)
}

func (e *Engine) emit(ev Event) {
	ev.Timestamp = e.clock.Now().Unix()
	e.log.Infow("event",
		"type", ev.Type,
		"order_id", ev.OrderID,
		"actor", ev.Actor.Hex(),
		"plugin", ev.Plugin,
	)
	for _, sink := range e.sinks {
		sink.Publish(ev)
	}
}
