package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-api/api/swagger"
	"github.com/noah-isme/attendance-api/internal/handler"
	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/cache"
	"github.com/noah-isme/attendance-api/pkg/config"
	"github.com/noah-isme/attendance-api/pkg/database"
	"github.com/noah-isme/attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-api/pkg/middleware/requestid"
)

// @title Attendance API
// @version 1.0.0
// @description Student attendance marking, statistics and exports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	adminRepo := repository.NewAdminRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "attendance", logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(adminRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	adminSvc := service.NewAdminService(adminRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, cacheSvc, validate, logr)
	batchSvc := service.NewBatchService(batchRepo, studentRepo, adminRepo, departmentRepo, cacheSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, batchRepo, cacheSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, batchRepo, studentRepo, cacheSvc, metricsSvc, validate, logr)
	statsSvc := service.NewAttendanceStatsService(batchRepo, studentRepo, attendanceRepo, cacheSvc, metricsSvc, logr, service.AttendanceStatsConfig{
		MaxRangeDays: cfg.Attendance.MaxRangeDays,
		CacheTTL:     cfg.Stats.CacheTTL,
	})
	exportSvc := service.NewExportService(statsSvc, metricsSvc, logr, nil, nil, nil)
	messageSvc := service.NewMessageService(messageRepo, adminRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(statsSvc, messageSvc, logr, service.DashboardServiceConfig{
		LowAttendanceThreshold: cfg.Dashboard.LowAttendanceThreshold,
		LowAttendanceLimit:     cfg.Dashboard.LowAttendanceLimit,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	adminHandler := handler.NewAdminHandler(adminSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, statsSvc, exportSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc,
		handler.ReadinessCheck{Name: "postgres", Check: db.PingContext},
		handler.ReadinessCheck{Name: "redis", Check: cacheRepo.Ping},
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginBurst, cfg.RateLimit.LoginPerMinute)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(adminRepo, logr, action, resource)
	}
	superAdmin := middleware.RequireRoles(models.RoleSuperAdmin)
	writer := middleware.RequireWriter()

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", loginLimiter.Middleware(), authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)

	admins := secured.Group("/admins", superAdmin)
	admins.GET("", adminHandler.List)
	admins.POST("", audit(models.AuditActionCreate, "admins"), adminHandler.Create)
	admins.GET("/:id", adminHandler.Get)
	admins.PUT("/:id", audit(models.AuditActionUpdate, "admins"), adminHandler.Update)
	admins.DELETE("/:id", audit(models.AuditActionDelete, "admins"), adminHandler.Delete)

	departments := secured.Group("/departments")
	departments.GET("", departmentHandler.List)
	departments.GET("/:id", departmentHandler.Get)
	departments.POST("", superAdmin, audit(models.AuditActionCreate, "departments"), departmentHandler.Create)
	departments.PUT("/:id", superAdmin, audit(models.AuditActionUpdate, "departments"), departmentHandler.Update)
	departments.DELETE("/:id", superAdmin, audit(models.AuditActionDelete, "departments"), departmentHandler.Delete)

	batches := secured.Group("/batches")
	batches.GET("", batchHandler.List)
	batches.GET("/:id", batchHandler.Get)
	batches.POST("", superAdmin, audit(models.AuditActionCreate, "batches"), batchHandler.Create)
	batches.PUT("/:id", superAdmin, audit(models.AuditActionUpdate, "batches"), batchHandler.Update)
	batches.DELETE("/:id", superAdmin, audit(models.AuditActionDelete, "batches"), batchHandler.Delete)
	batches.PUT("/:id/admins", superAdmin, audit(models.AuditActionUpdate, "batch_admins"), batchHandler.SetAdmins)

	students := secured.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", writer, audit(models.AuditActionCreate, "students"), studentHandler.Create)
	students.PUT("/:id", writer, audit(models.AuditActionUpdate, "students"), studentHandler.Update)
	students.DELETE("/:id", writer, audit(models.AuditActionDelete, "students"), studentHandler.Delete)

	attendance := secured.Group("/attendance")
	attendance.POST("", writer, audit(models.AuditActionMarkAttendance, "attendance"), attendanceHandler.Mark)
	attendance.GET("", attendanceHandler.List)
	attendance.GET("/stats", attendanceHandler.Stats)
	attendance.GET("/export", audit(models.AuditActionExport, "attendance"), attendanceHandler.Export)
	attendance.GET("/report", audit(models.AuditActionExport, "attendance"), attendanceHandler.Report)
	attendance.GET("/:id", attendanceHandler.Get)
	attendance.DELETE("/:id", writer, audit(models.AuditActionDelete, "attendance"), attendanceHandler.Delete)

	messages := secured.Group("/messages")
	messages.POST("", messageHandler.Send)
	messages.GET("", messageHandler.Inbox)
	messages.GET("/sent", messageHandler.Sent)
	messages.PATCH("/:id/read", messageHandler.MarkRead)
	messages.DELETE("/:id", messageHandler.Delete)

	secured.GET("/notifications/unread-count", messageHandler.UnreadCount)
	secured.GET("/dashboard", dashboardHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced shutdown", zap.Error(err))
	}
}
