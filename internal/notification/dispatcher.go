package notification

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/notification/domain"
	"github.com/smallbiznis/servicehub/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 1024
	defaultWorkers        = 4
	defaultPublishTimeout = 5 * time.Second
)

type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

type job struct {
	ctx   context.Context
	event domain.Event
}

// Dispatcher implements domain.Notifier on a bounded queue drained by a
// fixed set of workers. Delivery is at most once.
type Dispatcher struct {
	log        *zap.Logger
	metrics    *metrics.Metrics
	publishers []domain.Publisher
	timeout    time.Duration
	workers    int

	mu     sync.RWMutex
	queue  chan job
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, log *zap.Logger, m *metrics.Metrics, publishers ...domain.Publisher) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &Dispatcher{
		log:        log.Named("notification.dispatcher"),
		metrics:    m,
		publishers: publishers,
		timeout:    cfg.PublishTimeout,
		workers:    cfg.Workers,
		queue:      make(chan job, cfg.QueueSize),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Stop refuses new events, drains what is queued and waits for the workers
// until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Notify(ctx context.Context, userID snowflake.ID, event domain.Event) {
	event.UserID = userID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, event, "stopped")
		return
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		d.drop(ctx, event, "queue_full")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.queue {
		d.publish(j.ctx, j.event)
	}
}

func (d *Dispatcher) publish(ctx context.Context, event domain.Event) {
	for _, p := range d.publishers {
		pctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := p.Publish(pctx, event)
		cancel()
		if err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("sink", p.Name()),
				zap.String("event_type", string(event.Type)),
				zap.String("user_id", event.UserID.String()),
				zap.Error(err),
			)
			d.metrics.RecordNotificationDropped(ctx, string(event.Type), "publish_failed")
			continue
		}
		d.metrics.RecordNotificationPublished(ctx, string(event.Type), p.Name())
	}
}

func (d *Dispatcher) drop(ctx context.Context, event domain.Event, reason string) {
	d.log.Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID.String()),
	)
	d.metrics.RecordNotificationDropped(ctx, string(event.Type), reason)
}
