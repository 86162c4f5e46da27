package notification

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/servicehub/internal/config"
	"github.com/smallbiznis/servicehub/internal/notification/domain"
	"github.com/smallbiznis/servicehub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewHub),
	fx.Provide(NewNotifier),
)

type Params struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      config.Config
	Log         *zap.Logger
	Hub         *Hub
	Metrics     *metrics.Metrics                `optional:"true"`
	Redis       *redis.Client                   `optional:"true"`
	Marketplace *config.MarketplaceConfigHolder `optional:"true"`
}

// NewNotifier assembles the transports for this deployment. With redis the
// local hub is fed by the relay, so events reach subscribers on every
// instance; without it, or while the relay is down, events go to the hub
// directly.
func NewNotifier(p Params) domain.Notifier {
	log := p.Log.Named("notification")

	var publishers []domain.Publisher
	if p.Redis != nil {
		relay := NewRedisRelay(p.Redis, DefaultRedisChannel, p.Hub, log)
		publishers = append(publishers,
			NewRedisPublisher(p.Redis, DefaultRedisChannel),
			relayFallback{relay: relay, hub: p.Hub},
		)
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := relay.Start(ctx); err != nil {
					log.Warn("notification relay unavailable, delivering locally until it subscribes", zap.Error(err))
					relay.Retry(defaultRelayRetryInterval)
				}
				return nil
			},
			OnStop: relay.Stop,
		})
	} else {
		publishers = append(publishers, p.Hub)
	}

	if p.Config.Kafka.Enabled() {
		kafkaPublisher := NewKafkaPublisher(p.Config.Kafka.Brokers, p.Config.Kafka.NotificationTopic)
		publishers = append(publishers, kafkaPublisher)
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return kafkaPublisher.Close() },
		})
	}

	cfg := DispatcherConfig{}
	if p.Marketplace != nil {
		mc := p.Marketplace.Get()
		cfg.QueueSize = mc.NotificationQueueSize
		cfg.Workers = mc.NotificationWorkers
	}
	dispatcher := NewDispatcher(cfg, log, p.Metrics, publishers...)

	// Registered after the transports so it stops (and drains) before them.
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			dispatcher.Start()
			return nil
		},
		OnStop: dispatcher.Stop,
	})

	sinks := make([]string, 0, len(publishers))
	for _, pub := range publishers {
		sinks = append(sinks, pub.Name())
	}
	log.Info("notification channel configured", zap.Strings("sinks", sinks))
	return dispatcher
}
