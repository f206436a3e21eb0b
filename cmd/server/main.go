package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcabrera/citewatch/internal/aggregate"
	"github.com/rcabrera/citewatch/internal/config"
	"github.com/rcabrera/citewatch/internal/database"
	"github.com/rcabrera/citewatch/internal/enrich"
	"github.com/rcabrera/citewatch/internal/handlers"
	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/middleware"
	"github.com/rcabrera/citewatch/internal/query"
	"github.com/rcabrera/citewatch/internal/services"
	"github.com/rcabrera/citewatch/internal/store"
	"github.com/rcabrera/citewatch/internal/temporal"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting CiteWatch API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Initialize the document store
	documents := store.NewPostgres(db)
	if err := documents.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure document schema", err, nil)
	}

	// Engine components
	tz := temporal.New(cfg.Engine.UTCOffsetHours)
	filter := query.NewFilter(tz, log.WithComponent("filter"))
	rollup := aggregate.NewRollup(tz, log)
	grouper := aggregate.NewGrouper(tz, log)
	joiner := enrich.NewJoiner(documents.Users(), log)

	// Service layer
	violationService := services.NewViolationService(documents.Violations(), filter, joiner, tz, cfg.Engine, log)
	reportService := services.NewReportService(documents.Violations(), documents.Users(), rollup, grouper, joiner, cfg.Engine, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize handlers
	violationHandler := handlers.NewViolationHandler(violationService)
	reportHandler := handlers.NewReportHandler(reportService, tz)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		violations := v1.Group("/violations")
		{
			violations.POST("", violationHandler.Create)
			violations.GET("", violationHandler.List)
			violations.GET("/:id", violationHandler.Get)
			violations.PATCH("/:id/status", violationHandler.UpdateStatus)
			violations.DELETE("/:id", violationHandler.Delete)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("/dashboard", reportHandler.Dashboard)
			reports.GET("/daily", reportHandler.Daily)
			reports.GET("/monthly", reportHandler.Monthly)
			reports.GET("/enforcers", reportHandler.Enforcers)
			reports.GET("/repeat-offenders", reportHandler.RepeatOffenders)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
