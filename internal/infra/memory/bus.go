package memory

import (
	"context"
	"errors"
	"sync"

	"live-quiz-service/internal/app"
)

// ErrBusClosed is returned by a Bus that has been shut down.
var ErrBusClosed = errors.New("bus closed")

// Bus is an in-process pub/sub keyed by topic. Publish never blocks: a subscriber
// whose buffer is full misses the message, like a disconnected client would.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	closed bool
	size   int
}

func NewBus() *Bus {
	return NewBusWithBuffer(256)
}

// NewBusWithBuffer sets the per-subscriber buffer size.
func NewBusWithBuffer(size int) *Bus {
	return &Bus{subs: make(map[string]map[*subscription]struct{}), size: size}
}

func (b *Bus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for sub := range b.subs[topic] {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, topic string) (app.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub := &subscription{bus: b, topic: topic, ch: make(chan []byte, b.size)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub, nil
}

// Disconnect ends every subscription on topic, as a transport failure would.
func (b *Bus) Disconnect(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[topic] {
		sub.closeLocked()
	}
}

// Subscribers reports how many live subscriptions topic has.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close ends all subscriptions and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	return nil
}

type subscription struct {
	bus   *Bus
	topic string
	ch    chan []byte
}

func (s *subscription) Messages() <-chan []byte {
	return s.ch
}

func (s *subscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *subscription) closeLocked() {
	subs := s.bus.subs[s.topic]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(s.bus.subs, s.topic)
	}
	close(s.ch)
}
