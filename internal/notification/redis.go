package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/servicehub/internal/notification/domain"
	"go.uber.org/zap"
)

const (
	DefaultRedisChannel       = "servicehub:notifications"
	defaultRelayRetryInterval = 5 * time.Second
)

// RedisPublisher broadcasts events to every instance through redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	if p == nil || p.client == nil {
		return errors.New("redis publisher not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// RedisRelay feeds events received on the shared channel into the local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	retrying sync.WaitGroup
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, log *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		log:     log.Named("notification.relay"),
		stop:    make(chan struct{}),
	}
}

// Active reports whether the relay is currently subscribed.
func (r *RedisRelay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub != nil
}

// Retry keeps trying to subscribe every interval until it succeeds or the
// relay is stopped.
func (r *RedisRelay) Retry(interval time.Duration) {
	if interval <= 0 {
		interval = defaultRelayRetryInterval
	}
	r.retrying.Add(1)
	go func() {
		defer r.retrying.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
			}
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := r.Start(ctx)
			cancel()
			if err == nil {
				return
			}
			r.log.Debug("notification relay subscribe retry failed", zap.Error(err))
		}
	}()
}

func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			r.handle(msg.Payload)
		}
	}()
	r.log.Info("notification relay subscribed", zap.String("channel", r.channel))
	return nil
}

func (r *RedisRelay) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.retrying.Wait()

	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	if err := pubsub.Close(); err != nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *RedisRelay) handle(payload string) {
	var event domain.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.log.Warn("invalid notification payload", zap.Error(err))
		return
	}
	r.hub.Deliver(event)
}

// relayFallback hands events to the local hub while the relay is not
// subscribed. Once the relay is back the hub is fed by redis only.
type relayFallback struct {
	relay *RedisRelay
	hub   *Hub
}

func (f relayFallback) Name() string { return "hub_fallback" }

func (f relayFallback) Publish(ctx context.Context, event domain.Event) error {
	if f.relay.Active() {
		return nil
	}
	return f.hub.Publish(ctx, event)
}
