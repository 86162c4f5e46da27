package identity

import (
	"github.com/smallbiznis/servicehub/internal/identity/repository"
	"github.com/smallbiznis/servicehub/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
