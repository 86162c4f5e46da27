package marketmetrics

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/smallbiznis/servicehub/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultInterval = 5 * time.Minute

// Worker refreshes the gauges and pushes them on a fixed interval.
type Worker struct {
	db       *gorm.DB
	gauges   *Gauges
	pusher   Pusher
	clock    clock.Clock
	log      *zap.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(db *gorm.DB, gauges *Gauges, pusher Pusher, clk clock.Clock, log *zap.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		db:       db,
		gauges:   gauges,
		pusher:   pusher,
		clock:    clk,
		log:      log.Named("marketmetrics"),
		interval: interval,
	}
}

// RunOnce refreshes and pushes a single time.
func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout*2)
	defer cancel()

	if err := w.gauges.Refresh(ctx, w.db, w.clock.Now()); err != nil {
		return err
	}
	if w.pusher == nil {
		return nil
	}
	return w.pusher.Push(ctx, w.gauges.Registry())
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.tick(ctx)
		for {
			select {
			case <-ticker.C:
				w.tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	w.log.Info("market metrics worker started", zap.Duration("interval", w.interval))
}

func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if closer, ok := w.pusher.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (w *Worker) tick(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.log.Warn("market metrics push failed", zap.Error(err))
	}
}
