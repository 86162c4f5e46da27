package marketmetrics

import (
	"context"

	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("market.metrics",
	fx.Provide(NewGauges),
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, db *gorm.DB, gauges *Gauges, pusher Pusher, clk clock.Clock, log *zap.Logger) *Worker {
		if pusher == nil {
			return nil
		}
		return NewWorker(db, gauges, pusher, clk, log, cfg.MarketMetrics.Interval)
	}),
	fx.Invoke(func(lc fx.Lifecycle, w *Worker) {
		if w == nil {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				w.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return w.Stop(ctx)
			},
		})
	}),
)
