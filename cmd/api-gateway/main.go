package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/vokatra/cfp-admin-api/api/swagger"
	"github.com/vokatra/cfp-admin-api/internal/handler"
	"github.com/vokatra/cfp-admin-api/internal/middleware"
	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	"github.com/vokatra/cfp-admin-api/internal/service"
	"github.com/vokatra/cfp-admin-api/pkg/cache"
	"github.com/vokatra/cfp-admin-api/pkg/config"
	"github.com/vokatra/cfp-admin-api/pkg/database"
	"github.com/vokatra/cfp-admin-api/pkg/export"
	"github.com/vokatra/cfp-admin-api/pkg/logger"
	corsmiddleware "github.com/vokatra/cfp-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vokatra/cfp-admin-api/pkg/middleware/requestid"
	"github.com/vokatra/cfp-admin-api/pkg/storage"
)

// @title CFP Admin API
// @version 0.1.0
// @description Enrollment and billing backend for a vocational training centre
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(db); err != nil {
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, reference cache disabled", "error", err)
		redisClient = nil
	}
	if !cfg.Reference.CacheEnabled {
		redisClient = nil
	}

	receiptStore, err := storage.NewFilesystem(cfg.Billing.ReceiptStorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init receipt storage", "error", err)
	}
	signer := storage.NewURLSigner(cfg.Billing.SignedURLSecret, cfg.Billing.SignedURLTTL)
	receipts := export.NewReceiptRenderer("")

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	waveRepo := repository.NewWaveRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	levelSvc := service.NewLevelService(levelRepo, validate, logr)
	waveSvc := service.NewWaveService(waveRepo, levelRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, waveRepo, levelSvc, validate, logr)
	billingSvc := service.NewBillingService(billingRepo, receipts, receiptStore, signer, validate, logr)
	referenceSvc := service.NewReferenceService(referenceRepo, redisClient, metricsSvc, cfg.Reference.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	levelHandler := handler.NewLevelHandler(levelSvc)
	waveHandler := handler.NewWaveHandler(waveSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, billingSvc, metricsSvc)
	paymentHandler := handler.NewPaymentHandler(billingSvc, metricsSvc)
	referenceHandler := handler.NewReferenceHandler(referenceSvc)
	publicHandler := handler.NewPublicHandler(enrollmentSvc, waveSvc, cfg.Public.SelfEnrollmentEnabled)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	public := api.Group("/public")
	public.GET("/waves", publicHandler.OpenWaves)
	public.POST("/enrollments", publicHandler.SelfEnroll)

	api.GET("/receipts/download", paymentHandler.DownloadReceipt)

	staff := api.Group("", middleware.JWT(authSvc))
	office := staff.Group("", middleware.RBAC(models.RoleAdmin, models.RoleSecretary))

	staff.GET("/students", studentHandler.List)
	staff.GET("/students/:id", studentHandler.Get)
	office.POST("/students", studentHandler.Create)
	office.PUT("/students/:id", studentHandler.Update)
	office.DELETE("/students/:id", studentHandler.Deactivate)

	staff.GET("/levels", levelHandler.List)
	staff.GET("/levels/:id", levelHandler.Get)
	staff.GET("/levels/:id/fee-schedule", levelHandler.FeeSchedule)
	admin := staff.Group("", middleware.RBAC(models.RoleAdmin))
	admin.POST("/levels", levelHandler.Create)
	admin.PUT("/levels/:id", levelHandler.Update)
	admin.DELETE("/levels/:id", levelHandler.Delete)

	staff.GET("/waves", waveHandler.List)
	staff.GET("/waves/availability", waveHandler.Availability)
	staff.GET("/waves/:id", waveHandler.Get)
	office.POST("/waves", waveHandler.Create)
	office.PUT("/waves/:id", waveHandler.Update)
	office.PATCH("/waves/:id/status", waveHandler.UpdateStatus)
	office.DELETE("/waves/:id/students/:student_id", enrollmentHandler.Withdraw)

	staff.GET("/enrollments", enrollmentHandler.List)
	staff.GET("/enrollments/:id", enrollmentHandler.Get)
	staff.GET("/enrollments/:id/ledger", enrollmentHandler.Ledger)
	office.POST("/enrollments", enrollmentHandler.Enroll)
	office.PATCH("/enrollments/:id/status", enrollmentHandler.UpdateStatus)

	staff.GET("/ledgers/:id", paymentHandler.GetLedger)
	staff.GET("/ledgers/:id/payments", paymentHandler.ListPayments)
	staff.GET("/ledgers/:id/payments/export", paymentHandler.ExportPayments)
	office.POST("/ledgers/:id/payments", paymentHandler.ApplyPayment)
	office.POST("/payments/:id/receipt", paymentHandler.Receipt)
	admin.DELETE("/payments/:id", paymentHandler.VoidPayment)

	staff.GET("/reference/rooms", referenceHandler.Rooms)
	staff.GET("/reference/days", referenceHandler.Days)
	staff.GET("/reference/time-slots", referenceHandler.TimeSlots)
	staff.GET("/reference/teachers", referenceHandler.Teachers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
