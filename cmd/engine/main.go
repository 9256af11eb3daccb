package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	taskqueue "adserve-engine/pkg/asynq"
	"adserve-engine/pkg/config"
	"adserve-engine/pkg/db"
	"adserve-engine/pkg/gen"
	"adserve-engine/pkg/logger"
	"adserve-engine/pkg/redis"
	"adserve-engine/services/discount"
	"adserve-engine/services/pricing"
	"adserve-engine/services/segment"
	"adserve-engine/services/targeting"
)

// The engine runs as a single worker process: the services are plain library
// collaborators for the serving and admin paths, and the asynq server drives
// segment membership refresh.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		taskqueue.Client,
		taskqueue.Server,

		targeting.Module,
		pricing.Module,
		discount.Module,
		segment.Module,

		fx.Invoke(
			registerDBPlugins,
			segment.RegisterHandlers,
			segment.StartScheduler,
		),

		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func registerDBPlugins(gdb *gorm.DB, cfg *config.Config) error {
	if err := db.Otel(gdb); err != nil {
		return err
	}
	return db.Metric(gdb, cfg.Database.DBNAME)
}
