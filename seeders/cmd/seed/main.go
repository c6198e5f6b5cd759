package main

import (
	"context"

	"go.uber.org/zap"

	"lab-request-system/pkg/config"
	"lab-request-system/pkg/database/postgresql"
	"lab-request-system/pkg/logger"
	"lab-request-system/seeders"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg := config.New()
	ctx := context.Background()

	postgresql.Migrate(cfg.Postgres.DSN, log)
	pool := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, log)
	defer pool.Close()

	if err := seeders.Run(ctx, pool, log); err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}
	log.Info("seeding finished")
}
