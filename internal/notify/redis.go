package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	logpkg "github.com/rzbill/xwork/pkg/log"
)

// ChannelPrefix prefixes the pub/sub channel of every topic.
const ChannelPrefix = "xwork:topic:"

// Redis fans notifications out through Redis pub/sub so that acquirers
// served by other processes over the same store wake up too. Local waiters
// are woken by the subscription, including for this process's own publishes.
type Redis struct {
	rdb    *redis.Client
	local  *Memory
	sub    *redis.PubSub
	logger logpkg.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRedis subscribes to every topic channel and starts delivering messages
// to local waiters. The client is owned by the returned notifier.
func NewRedis(ctx context.Context, rdb *redis.Client, logger logpkg.Logger) (*Redis, error) {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	sub := rdb.PSubscribe(ctx, ChannelPrefix+"*")
	// wait for the subscription confirmation so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		rdb:    rdb,
		local:  NewMemory(),
		sub:    sub,
		logger: logger.WithComponent("notify"),
		cancel: cancel,
	}
	r.wg.Add(1)
	go r.run(runCtx)
	return r, nil
}

func (r *Redis) run(ctx context.Context) {
	defer r.wg.Done()
	ch := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.local.wake(strings.TrimPrefix(msg.Channel, ChannelPrefix))
		}
	}
}

func (r *Redis) Publish(ctx context.Context, topic string) error {
	if err := r.rdb.Publish(ctx, ChannelPrefix+topic, "1").Err(); err != nil {
		r.logger.Warn("publish failed", logpkg.Str("topic", topic), logpkg.Err(err))
		// local waiters still deserve the wakeup
		r.local.wake(topic)
		return err
	}
	return nil
}

func (r *Redis) Watch(topic string) <-chan struct{} { return r.local.Watch(topic) }

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *Redis) Close() error {
	r.cancel()
	err := r.sub.Close()
	r.wg.Wait()
	_ = r.local.Close()
	if cerr := r.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}
