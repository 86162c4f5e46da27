package stats

import (
	"github.com/smallbiznis/servicehub/internal/stats/repository"
	"github.com/smallbiznis/servicehub/internal/stats/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stats.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
