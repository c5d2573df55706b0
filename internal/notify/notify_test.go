package notify

import (
	"context"
	"testing"
	"time"
)

func TestMemoryPublishWakesWatchers(t *testing.T) {
	m := NewMemory()
	a := m.Watch("orders")
	b := m.Watch("orders")
	other := m.Watch("billing")

	if err := m.Publish(context.Background(), "orders"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for i, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("watcher %d not woken", i)
		}
	}
	select {
	case <-other:
		t.Fatalf("unrelated topic woken")
	default:
	}

	next := m.Watch("orders")
	select {
	case <-next:
		t.Fatalf("new watch must wait for the next publish")
	default:
	}
}

func TestMemoryPublishWithoutWatchers(t *testing.T) {
	m := NewMemory()
	if err := m.Publish(context.Background(), "nobody"); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestMemoryCloseWakesAll(t *testing.T) {
	m := NewMemory()
	ch := m.Watch("t")
	_ = m.Close()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("close did not wake watcher")
	}
}
