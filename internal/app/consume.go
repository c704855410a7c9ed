package app

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// newBackOff builds the resubscribe policy; tests shorten it.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// consume keeps a subscription to topic alive until ctx ends, calling handle for
// every message. onSubscribed runs after each successful (re)subscribe so callers
// can refetch state that may have been missed while disconnected.
func consume(ctx context.Context, bus Bus, topic string, logger *zap.Logger, onSubscribed func(context.Context), handle func(context.Context, []byte)) error {
	policy := newBackOff()
	for {
		sub, err := bus.Subscribe(ctx, topic)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := policy.NextBackOff()
			logger.Warn("bus subscribe failed", zap.String("topic", topic), zap.Error(err), zap.Duration("retry_in", wait))
			if !sleepCtx(ctx, wait) {
				return nil
			}
			continue
		}
		policy.Reset()
		if onSubscribed != nil {
			onSubscribed(ctx)
		}

		closed := drain(ctx, sub, handle)
		_ = sub.Close()
		if !closed {
			return nil
		}
		wait := policy.NextBackOff()
		logger.Warn("bus subscription lost, resubscribing", zap.String("topic", topic), zap.Duration("retry_in", wait))
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

// drain returns true if the subscription closed underneath us, false if ctx ended.
func drain(ctx context.Context, sub Subscription, handle func(context.Context, []byte)) bool {
	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return false
		case payload, ok := <-msgs:
			if !ok {
				return true
			}
			handle(ctx, payload)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
