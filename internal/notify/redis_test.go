package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func openRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("XWORK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("XWORK_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := NewRedis(ctx, redis.NewClient(&redis.Options{Addr: addr}), nil)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestRedisPublishReachesOtherProcess(t *testing.T) {
	a := openRedis(t)
	b := openRedis(t)

	ch := b.Watch("orders")
	if err := a.Publish(context.Background(), "orders"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("remote watcher not woken")
	}
}
