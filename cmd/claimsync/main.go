package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimsync/internal/audit"
	"github.com/smallbiznis/claimsync/internal/chain/ethereum"
	"github.com/smallbiznis/claimsync/internal/clock"
	"github.com/smallbiznis/claimsync/internal/config"
	"github.com/smallbiznis/claimsync/internal/contentstore"
	"github.com/smallbiznis/claimsync/internal/cursor"
	"github.com/smallbiznis/claimsync/internal/insurance"
	"github.com/smallbiznis/claimsync/internal/journal"
	"github.com/smallbiznis/claimsync/internal/migration"
	"github.com/smallbiznis/claimsync/internal/observability"
	"github.com/smallbiznis/claimsync/internal/poller"
	"github.com/smallbiznis/claimsync/internal/reconcile"
	"github.com/smallbiznis/claimsync/internal/server"
	"github.com/smallbiznis/claimsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		insurance.Module,
		cursor.Module,
		journal.Module,
		audit.Module,

		ethereum.Module,
		contentstore.Module,
		reconcile.Module,
		poller.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
