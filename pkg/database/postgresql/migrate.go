package postgresql

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"lab-request-system/migrations"
)

// Migrate applies the embedded goose migrations before the server starts
// serving traffic.
func Migrate(dsn string, logger *zap.Logger) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal("failed to open migration connection", zap.Error(err))
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("failed to set goose dialect", zap.Error(err))
	}

	if err := goose.Up(db, "."); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	logger.Info("database migrations applied")
}
