package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/classgrid/classgrid-api/api/swagger"
	"github.com/classgrid/classgrid-api/internal/handler"
	"github.com/classgrid/classgrid-api/internal/middleware"
	"github.com/classgrid/classgrid-api/internal/repository"
	"github.com/classgrid/classgrid-api/internal/service"
	"github.com/classgrid/classgrid-api/pkg/cache"
	"github.com/classgrid/classgrid-api/pkg/config"
	"github.com/classgrid/classgrid-api/pkg/database"
	"github.com/classgrid/classgrid-api/pkg/logger"
	corsmiddleware "github.com/classgrid/classgrid-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classgrid/classgrid-api/pkg/middleware/requestid"
)

// @title ClassGrid API
// @version 1.0.0
// @description School scheduling administration with conflict-checked timetabling
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	teacherSvc := service.NewTeacherService(teacherRepo, classRepo, cacheService, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, cacheService, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, classRepo, cacheService, validate, logr)
	classSvc := service.NewClassService(classRepo, teacherRepo, roomRepo, cacheService, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, studentRepo, validate, logr)
	timetableSvc := service.NewTimetableService(classRepo, classSvc, cfg.Timetable.Days, cfg.Timetable.Slots, logr)
	dashboardSvc := service.NewDashboardService(classRepo, teacherRepo, studentRepo, roomRepo, cacheService, cfg.Dashboard.CacheTTL, logr)

	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	classHandler := handler.NewClassHandler(classSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/dashboard/stats", dashboardHandler.Stats)

		api.GET("/teachers", teacherHandler.List)
		api.POST("/teachers", teacherHandler.Create)
		api.GET("/teachers/:id", teacherHandler.Get)
		api.PATCH("/teachers/:id", teacherHandler.Update)
		api.DELETE("/teachers/:id", teacherHandler.Delete)

		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.GET("/students/:id", studentHandler.Get)
		api.PATCH("/students/:id", studentHandler.Update)
		api.DELETE("/students/:id", studentHandler.Delete)

		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", roomHandler.Create)
		api.GET("/rooms/:id", roomHandler.Get)
		api.PATCH("/rooms/:id", roomHandler.Update)
		api.DELETE("/rooms/:id", roomHandler.Delete)

		api.GET("/classes", classHandler.List)
		api.POST("/classes", classHandler.Create)
		api.POST("/classes/check-conflicts", classHandler.CheckConflicts)
		api.GET("/classes/:id", classHandler.Get)
		api.PATCH("/classes/:id", classHandler.Update)
		api.DELETE("/classes/:id", classHandler.Delete)

		api.GET("/classes/:id/enrollments", enrollmentHandler.List)
		api.POST("/classes/:id/enrollments", enrollmentHandler.Enroll)
		api.DELETE("/classes/:id/enrollments/:studentId", enrollmentHandler.Unenroll)

		api.GET("/timetable", timetableHandler.Grid)
		api.POST("/timetable/relocate", timetableHandler.Relocate)
		api.GET("/timetable/export", timetableHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
