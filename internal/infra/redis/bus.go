package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
)

// Bus is app.Bus over Redis Pub/Sub. Redis gives at-most-once delivery to
// connected subscribers only, so consumers refetch state after every resubscribe.
type Bus struct {
	client *redis.Client
	size   int
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client, size: 256}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so nothing
// published after it returns is missed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (app.Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sub := &subscription{
		ps:   ps,
		out:  make(chan []byte, b.size),
		done: make(chan struct{}),
	}
	go sub.pump(ps.ChannelWithSubscriptions(redis.WithChannelSize(b.size)))
	return sub, nil
}

type subscription struct {
	ps        *redis.PubSub
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) Messages() <-chan []byte {
	return s.out
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// pump forwards payloads until the subscription is closed. go-redis reconnects
// dropped connections on its own and re-subscribes; that re-subscribe confirmation
// ends this subscription so the consumer notices the gap and refetches.
func (s *subscription) pump(in <-chan interface{}) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case *redis.Message:
				select {
				case s.out <- []byte(m.Payload):
				case <-s.done:
					return
				}
			case *redis.Subscription:
				if m.Kind == "subscribe" {
					_ = s.Close()
					return
				}
			}
		}
	}
}
