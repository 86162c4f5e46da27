package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	"github.com/smallbiznis/servicehub/internal/marketmetrics"
	"github.com/smallbiznis/servicehub/internal/migration"
	"github.com/smallbiznis/servicehub/internal/observability"
	"github.com/smallbiznis/servicehub/internal/scheduler"
	"github.com/smallbiznis/servicehub/internal/seed"
	"github.com/smallbiznis/servicehub/internal/server"
	"github.com/smallbiznis/servicehub/pkg/db"
	"go.uber.org/fx"
)

// servicehub runs the API, the earnings reconcile job and the gauge
// exporter in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
		seed.Module,
		scheduler.Module,
		marketmetrics.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
