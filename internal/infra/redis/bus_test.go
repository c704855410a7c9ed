package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	bus := NewBus(newClient(mr))
	sub, err := bus.Subscribe(ctx, "quiz:state")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, "quiz:state", []byte(`{"phase":"voting"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, "quiz:ranking", []byte(`ignored`)); err != nil {
		t.Fatalf("publish other topic: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if string(msg) != `{"phase":"voting"}` {
			t.Fatalf("unexpected payload %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message delivered")
	}
	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected message from another topic: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusCloseEndsMessages(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr))
	sub, err := bus.Subscribe(context.Background(), "quiz:answers")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = sub.Close()

	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("messages channel not closed")
	}
}

func TestBusSubscribeFailsWhenServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewBus(client).Subscribe(ctx, "quiz:state"); err == nil {
		t.Fatalf("expected subscribe error with redis down")
	}
}
