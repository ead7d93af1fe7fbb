package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	"github.com/clinvia/clinvia/internal/customer"
	"github.com/clinvia/clinvia/internal/finance"
	"github.com/clinvia/clinvia/internal/installment"
	"github.com/clinvia/clinvia/internal/livefeed"
	"github.com/clinvia/clinvia/internal/logger"
	"github.com/clinvia/clinvia/internal/metrics"
	"github.com/clinvia/clinvia/internal/migration"
	"github.com/clinvia/clinvia/internal/payment"
	"github.com/clinvia/clinvia/internal/scheduler"
	"github.com/clinvia/clinvia/internal/server"
	"github.com/clinvia/clinvia/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		metrics.Module,
		livefeed.Module,

		customer.Module,
		finance.Module,
		payment.Module,
		installment.Module,

		scheduler.Module,
		server.Module,
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
