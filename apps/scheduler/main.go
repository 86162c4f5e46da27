package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	"github.com/smallbiznis/servicehub/internal/marketmetrics"
	"github.com/smallbiznis/servicehub/internal/observability"
	"github.com/smallbiznis/servicehub/internal/ratelimit"
	"github.com/smallbiznis/servicehub/internal/scheduler"
	"github.com/smallbiznis/servicehub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Redis-backed job locks so replicas do not run the same job twice.
		ratelimit.Module,

		// No server module.
		scheduler.Module,
		marketmetrics.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
