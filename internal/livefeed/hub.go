package livefeed

import (
	"errors"
	"strings"
	"sync"
)

const (
	KindFinances     = "finances"
	KindPayments     = "payments"
	KindInstallments = "installments"
)

const (
	DefaultBufferSize       = 16
	DefaultSubscriberBuffer = 8
)

// Event is a full-replace snapshot pushed to subscribers after a committed
// mutation. Delivery is at-least-once and not ordered relative to write
// completion; consumers must not assume their own write is already visible.
type Event struct {
	CustomerID string `json:"customer_id"`
	Kind       string `json:"kind"`
	FinanceID  string `json:"finance_id,omitempty"`
	Snapshot   any    `json:"snapshot"`
}

// Hub fans snapshot events out to per-customer subscribers.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []Event
	subs   map[uint64]chan Event
	nextID uint64
}

// Subscription is a handle on a customer stream. Close releases it.
type Subscription struct {
	hub        *Hub
	customerID string
	id         uint64
	ch         chan Event
	once       sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish delivers event to every subscriber of the customer stream. Sends
// never block: a slow subscriber misses intermediate snapshots and catches up
// on the next one, which full-replace semantics make safe.
func (h *Hub) Publish(customerID string, event Event) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(customerID)
	if key == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for the customer and returns the buffered
// events seen so far.
func (h *Hub) Subscribe(customerID string) (*Subscription, []Event, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	key := strings.TrimSpace(customerID)
	if key == "" {
		return nil, nil, errors.New("invalid_customer_id")
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan Event)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]Event(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:        h,
		customerID: key,
		id:         id,
		ch:         ch,
	}, buffer, nil
}

// Events returns the subscriber channel.
func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

// Close unsubscribes and releases the channel. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.mu.RLock()
		stream := s.hub.streams[s.customerID]
		s.hub.mu.RUnlock()
		if stream != nil {
			stream.mu.Lock()
			delete(stream.subs, s.id)
			stream.mu.Unlock()
		}
		close(s.ch)
	})
}

func (h *Hub) ensureStream(key string) *stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.streams[key]; ok {
		return existing
	}
	created := &stream{}
	h.streams[key] = created
	return created
}
