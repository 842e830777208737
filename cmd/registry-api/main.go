package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/unireg-api/api/swagger"
	"github.com/noah-isme/unireg-api/internal/handler"
	"github.com/noah-isme/unireg-api/internal/middleware"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	"github.com/noah-isme/unireg-api/internal/service"
	"github.com/noah-isme/unireg-api/pkg/cache"
	"github.com/noah-isme/unireg-api/pkg/config"
	"github.com/noah-isme/unireg-api/pkg/database"
	"github.com/noah-isme/unireg-api/pkg/jobs"
	"github.com/noah-isme/unireg-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/unireg-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/unireg-api/pkg/middleware/requestid"
	"github.com/noah-isme/unireg-api/pkg/storage"
)

// @title University Registry API
// @version 1.0.0
// @description Course registration, grading and reporting service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	snapshotStore, err := storage.NewLocalStorage(cfg.Snapshot.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init snapshot storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	personRepo := repository.NewPersonRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)

	authSvc := service.NewAuthService(personRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "unireg-api",
	})
	enrollmentSvc := service.NewEnrollmentService(registrationRepo, courseRepo, personRepo, cacheSvc, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, departmentRepo, personRepo, registrationRepo, nil, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, personRepo, nil, logr)
	personSvc := service.NewPersonService(personRepo, departmentRepo, registrationRepo, nil, logr)
	reportSvc := service.NewReportService(personRepo, courseRepo, registrationRepo, departmentRepo, cacheSvc, cfg.Reports.CacheTTL, exportStore, signer, logr)
	snapshotSvc := service.NewSnapshotService(personRepo, courseRepo, departmentRepo, snapshotStore, jobs.QueueConfig{
		Workers:    cfg.Snapshot.WorkerConcurrency,
		MaxRetries: cfg.Snapshot.WorkerRetries,
	}, logr)

	snapshotSvc.Start(ctx)
	defer snapshotSvc.Stop()
	reportSvc.StartCleanup(ctx, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL)

	authHandler := handler.NewAuthHandler(authSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentSvc)
	personHandler := handler.NewPersonHandler(personSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	snapshotHandler := handler.NewSnapshotHandler(snapshotSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registrar := string(models.RoleRegistrar)
	professor := string(models.RoleProfessor)
	registrarOnly := middleware.RequireRoles(models.RoleRegistrar)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
			auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
			auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		}

		protected := api.Group("")
		protected.Use(middleware.JWT(authSvc))
		{
			protected.GET("/departments", departmentHandler.List)
			protected.GET("/departments/:code", departmentHandler.Get)
			protected.POST("/departments", registrarOnly, departmentHandler.Create)
			protected.PUT("/departments/:code/head", registrarOnly, departmentHandler.AssignHead)

			protected.GET("/persons", middleware.RequireRoles(models.RoleRegistrar, models.RoleProfessor), personHandler.List)
			protected.GET("/persons/:id", middleware.RBAC(registrar, professor, "SELF"), personHandler.Get)
			protected.DELETE("/persons/:id", registrarOnly, personHandler.Remove)
			protected.POST("/students", registrarOnly, personHandler.CreateStudent)
			protected.POST("/professors", registrarOnly, personHandler.CreateProfessor)
			protected.POST("/registrars", registrarOnly, personHandler.CreateRegistrar)

			protected.GET("/courses", courseHandler.List)
			protected.GET("/courses/:code", courseHandler.Get)
			protected.POST("/courses", registrarOnly, courseHandler.Create)
			protected.DELETE("/courses/:code", registrarOnly, courseHandler.Delete)
			protected.POST("/courses/:code/prerequisites", registrarOnly, courseHandler.AddPrerequisite)
			protected.PUT("/courses/:code/instructor", registrarOnly, courseHandler.AssignInstructor)
			protected.PUT("/courses/:code/status", registrarOnly, courseHandler.OverrideStatus)
			protected.GET("/courses/:code/roster", middleware.RequireRoles(models.RoleRegistrar, models.RoleProfessor), enrollmentHandler.Roster)
			protected.GET("/professors/:id/courses", middleware.RBAC(registrar, professor, "SELF"), courseHandler.TeachingList)

			protected.POST("/registrations", middleware.RequireRoles(models.RoleStudent, models.RoleRegistrar), enrollmentHandler.Register)
			protected.DELETE("/registrations/:code", middleware.RequireRoles(models.RoleStudent, models.RoleRegistrar), enrollmentHandler.Drop)
			protected.GET("/students/:id/registrations", middleware.RBAC(registrar, professor, "SELF"), enrollmentHandler.ListByStudent)
			protected.POST("/grades", middleware.RequireRoles(models.RoleProfessor), enrollmentHandler.AssignGrade)

			protected.GET("/reports/students/:id", reportHandler.GradeReport)
			protected.POST("/reports/students/:id/export", reportHandler.ExportGradeReport)
			protected.GET("/reports/courses/:code", middleware.RequireRoles(models.RoleRegistrar, models.RoleProfessor), reportHandler.EnrollmentReport)
			protected.POST("/reports/courses/:code/export", middleware.RequireRoles(models.RoleRegistrar, models.RoleProfessor), reportHandler.ExportEnrollmentReport)
			protected.GET("/reports/statistics", registrarOnly, reportHandler.Statistics)

			protected.POST("/snapshots", registrarOnly, snapshotHandler.Save)
			protected.POST("/snapshots/restore", registrarOnly, snapshotHandler.Restore)
		}

		// Download links are pre-signed; the token is the credential.
		api.GET("/reports/download", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
