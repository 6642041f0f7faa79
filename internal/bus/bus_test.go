package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeOrder(t *testing.T) {
	b := NewEventBus()
	b.Publish(&Event{Kind: KindUserMessage, Text: "первый"})
	b.Publish(&Event{Kind: KindUserMessage, Text: "второй"})

	ctx := context.Background()
	first, err := b.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	second, err := b.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if first.Text != "первый" || second.Text != "второй" {
		t.Fatalf("order broken: %q then %q", first.Text, second.Text)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("timestamp not set on publish")
	}
}

func TestConsumeUnblocksOnStop(t *testing.T) {
	b := NewEventBus()
	done := make(chan error, 1)
	go func() {
		_, err := b.Consume(context.Background())
		done <- err
	}()
	b.Stop()
	select {
	case err := <-done:
		if err != ErrStopped {
			t.Fatalf("err = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not unblock")
	}
	b.Stop() // idempotent
}

func TestConsumeUnblocksOnContextCancel(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Consume(ctx); err == nil {
		t.Fatal("expected an error on cancelled context")
	}
}

func TestSizeReportsBacklog(t *testing.T) {
	b := NewEventBus()
	if b.Size() != 0 {
		t.Fatalf("size = %d, want 0", b.Size())
	}
	b.Publish(&Event{Kind: KindCallback})
	if b.Size() != 1 {
		t.Fatalf("size = %d, want 1", b.Size())
	}
}
