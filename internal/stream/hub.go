// Package stream fans out telemetry records and alert events to live
// subscribers. Publishing never blocks: a subscriber whose bounded
// queue overflows is disconnected and must re-subscribe to resume.
package stream

import (
	"sync"

	"go.uber.org/zap"
)

// Kind selects which event stream a topic carries.
type Kind string

const (
	KindAlerts    Kind = "alerts"
	KindTelemetry Kind = "telemetry"
)

// TopicAll subscribes across every vehicle.
const TopicAll = "all"

type topic struct {
	kind Kind
	auv  string
}

// Subscription is one live feed handle. Closing it releases hub-side
// resources immediately.
type Subscription struct {
	hub    *Hub
	topic  topic
	ch     chan []byte
	closed bool // guarded by hub.mu
}

// C yields events in publish order. The channel is closed when the
// subscription is cancelled or the subscriber fell too far behind.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Close cancels the subscription.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }

// Hub is the fan-out broadcaster. Topics are keyed by stream kind and
// vehicle id, with TopicAll receiving every vehicle's events.
type Hub struct {
	mu     sync.RWMutex
	subs   map[topic]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger

	onDisconnect func() // metrics hook, may be nil
}

// NewHub builds a hub whose subscribers each get a queue of buffer
// events.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[topic]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// OnDisconnect registers a hook invoked once per forced disconnect.
func (h *Hub) OnDisconnect(fn func()) { h.onDisconnect = fn }

// Subscribe registers a feed for one vehicle, or for all vehicles
// when auvID is empty or TopicAll.
func (h *Hub) Subscribe(kind Kind, auvID string) *Subscription {
	if auvID == "" {
		auvID = TopicAll
	}
	sub := &Subscription{
		hub:   h,
		topic: topic{kind: kind, auv: auvID},
		ch:    make(chan []byte, h.buffer),
	}
	h.mu.Lock()
	set, ok := h.subs[sub.topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.topic] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// remove must be called with h.mu held for writing.
func (h *Hub) remove(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	if set, ok := h.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.topic)
		}
	}
	close(sub.ch)
}

// Publish delivers payload to every subscriber of (kind, auvID) and
// of (kind, all). Subscribers that cannot keep up are dropped; the
// publisher never blocks. Sends happen under the read lock so no
// channel can be closed mid-send.
func (h *Hub) Publish(kind Kind, auvID string, payload []byte) {
	h.mu.RLock()
	var overflowed []*Subscription
	deliver := func(t topic) {
		for sub := range h.subs[t] {
			select {
			case sub.ch <- payload:
			default:
				overflowed = append(overflowed, sub)
			}
		}
	}
	deliver(topic{kind: kind, auv: auvID})
	if auvID != TopicAll {
		deliver(topic{kind: kind, auv: TopicAll})
	}
	h.mu.RUnlock()

	if len(overflowed) == 0 {
		return
	}
	h.mu.Lock()
	for _, sub := range overflowed {
		if sub.closed {
			continue
		}
		h.remove(sub)
		h.log.Warn("disconnecting slow stream subscriber",
			zap.String("kind", string(kind)),
			zap.String("topic", sub.topic.auv))
		if h.onDisconnect != nil {
			h.onDisconnect()
		}
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of live subscriptions per kind.
func (h *Hub) SubscriberCount() map[Kind]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[Kind]int)
	for t, set := range h.subs {
		counts[t.kind] += len(set)
	}
	return counts
}
