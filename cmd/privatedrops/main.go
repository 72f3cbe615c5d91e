package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/migration"
	"github.com/smallbiznis/privatedrops/internal/observability"
	"github.com/smallbiznis/privatedrops/internal/scheduler"
	"github.com/smallbiznis/privatedrops/internal/server"
	"github.com/smallbiznis/privatedrops/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the domains behind it
		server.Module,

		// Background jobs
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
