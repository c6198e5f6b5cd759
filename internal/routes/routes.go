package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/controllers"
	"lab-request-system/internal/repositories"
	"lab-request-system/internal/services"
	"lab-request-system/pkg/config"
	"lab-request-system/pkg/filestorage"
	"lab-request-system/pkg/middleware"
	"lab-request-system/pkg/service"
)

// InitRoutes wires repositories, services and controllers and registers every
// route on the Echo instance.
func InitRoutes(
	e *echo.Echo,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	storage filestorage.ResultStorageInterface,
	jwtService service.JWTService,
	cfg *config.Config,
	logger *zap.Logger,
) {
	txManager := repositories.NewTxManager(pool)
	userRepo := repositories.NewUserRepository(pool)
	typeRepo := repositories.NewAnalysisTypeRepository(pool)
	requestRepo := repositories.NewRequestRepository(pool)
	attachmentRepo := repositories.NewAttachmentRepository(pool)
	auditRepo := repositories.NewAuditRepository(pool)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	gate := authz.NewGate()

	authService := services.NewAuthService(userRepo, auditRepo, txManager, jwtService, logger)
	userService := services.NewUserService(userRepo, auditRepo, txManager, gate, cfg.List, logger)
	typeService := services.NewAnalysisTypeService(typeRepo, userRepo, auditRepo, txManager, cacheRepo, gate, logger)
	requestService := services.NewRequestService(
		requestRepo, typeRepo, userRepo, attachmentRepo, auditRepo, txManager, gate, cfg.List, logger)
	attachmentService := services.NewAttachmentService(
		attachmentRepo, requestRepo, userRepo, auditRepo, txManager, storage, gate, logger)
	auditService := services.NewAuditService(auditRepo, userRepo, gate, cfg.List, logger)
	reportService := services.NewReportService(requestRepo, typeRepo, userRepo, gate, logger)

	authController := controllers.NewAuthController(authService, logger)
	userController := controllers.NewUserController(userService, logger)
	typeController := controllers.NewAnalysisTypeController(typeService, logger)
	requestController := controllers.NewRequestController(requestService, reportService, logger)
	attachmentController := controllers.NewAttachmentController(attachmentService, logger)
	auditController := controllers.NewAuditController(auditService, logger)

	authMW := middleware.NewAuthMiddleware(jwtService, logger)

	api := e.Group("/api")

	api.POST("/auth/login", authController.Login)
	api.POST("/auth/refresh", authController.Refresh)
	api.POST("/auth/logout", authController.Logout, authMW.Auth)

	secured := api.Group("", authMW.Auth)

	secured.POST("/requests", requestController.Create)
	secured.GET("/requests", requestController.List)
	secured.GET("/requests/export", requestController.Export)
	secured.GET("/requests/:id", requestController.FindByID)
	secured.POST("/requests/:id/sample-received", requestController.SampleReceived)
	secured.PATCH("/requests/:id/analyst", requestController.UpdateByAnalyst)
	secured.PATCH("/requests/:id/chemist", requestController.UpdateByChemist)

	secured.POST("/requests/:id/files", attachmentController.Upload)
	secured.GET("/requests/:id/files", attachmentController.List)
	secured.GET("/files/:fileId/download", attachmentController.Download)
	secured.DELETE("/files/:fileId", attachmentController.Delete)

	secured.GET("/analysis-types", typeController.ListActive)
	secured.GET("/analysis-types/all", typeController.List)
	secured.POST("/analysis-types", typeController.Create)
	secured.PATCH("/analysis-types/:id", typeController.Update)

	secured.POST("/users", userController.Create)
	secured.GET("/users", userController.List)
	secured.GET("/users/:id", userController.FindByID)
	secured.PATCH("/users/:id", userController.Update)

	secured.GET("/audit-logs", auditController.List)
}
