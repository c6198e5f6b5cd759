package main

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"lab-request-system/internal/routes"
	"lab-request-system/pkg/config"
	"lab-request-system/pkg/customvalidator"
	"lab-request-system/pkg/database/postgresql"
	"lab-request-system/pkg/filestorage"
	"lab-request-system/pkg/logger"
	"lab-request-system/pkg/service"
	"lab-request-system/pkg/utils"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg := config.New()
	ctx := context.Background()

	postgresql.Migrate(cfg.Postgres.DSN, log)
	pool := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, log)
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis is not reachable, catalog caching degraded", zap.Error(err))
	}
	defer redisClient.Close()

	storage, err := filestorage.NewLocalResultStorage(cfg.Upload.Dir, cfg.Upload.MaxFileSizeByte)
	if err != nil {
		log.Fatal("failed to initialize file storage", zap.Error(err))
	}

	jwtService := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)

	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		log.Fatal("failed to register custom validations", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator(v)
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	routes.InitRoutes(e, pool, redisClient, storage, jwtService, cfg, log)

	log.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
