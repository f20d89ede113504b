// Package events is a small in-process pub/sub bus. The engine publishes
// signal and trade events; consumers subscribe without coupling to the
// pipeline.
package events

import (
	"sync"
	"time"
)

// Type tags an event.
type Type string

const (
	SignalGenerated Type = "SIGNAL_GENERATED"
	SignalRejected  Type = "SIGNAL_REJECTED"
	TradeOpened     Type = "TRADE_OPENED"
	TradeClosed     Type = "TRADE_CLOSED"
	EpisodeExpired  Type = "EPISODE_EXPIRED"
)

// Event carries a typed payload. Data is the domain object the event is
// about (*signal.Signal, *lifecycle.Trade); subscribers type-assert.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Subscriber handles one event. Called synchronously on the publisher's
// goroutine; slow work belongs behind the subscriber's own channel.
type Subscriber func(Event)

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[Type][]Subscriber
	all  []Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]Subscriber)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], s)
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, s)
}

// Publish delivers an event to its type's subscribers, then the catch-all
// subscribers, in registration order.
func (b *Bus) Publish(t Type, data any) {
	ev := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	b.mu.RLock()
	typed := b.subs[t]
	all := b.all
	b.mu.RUnlock()

	for _, s := range typed {
		s(ev)
	}
	for _, s := range all {
		s(ev)
	}
}
