package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storeops/internal/app"
	"storeops/internal/config"
	"storeops/internal/handlers"
	"storeops/internal/logger"
	"storeops/internal/middleware"
)

var deps *app.App

func main() {
	configPath := getEnv("CONFIG_PATH", "/app/config/storeops.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", configPath, err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Environment, "storeops-api")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	zl.Info("Loaded configuration", append(cfg.LogFields(), zap.String("path", configPath))...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err = app.New(ctx, cfg, zl, prometheus.DefaultRegisterer)
	if err != nil {
		zl.Fatal("Failed to initialize", zap.Error(err))
	}
	defer deps.Close()

	// Background deletion queue (GORM databases only)
	if deps.Scheduler != nil {
		if err := deps.Scheduler.Start(); err != nil {
			zl.Warn("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			deps.Scheduler.Stop(stopCtx)
		}()
	}

	if cfg.Logging.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(zl))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Requested-By", middleware.RequestIDKey},
		ExposeHeaders:    []string{middleware.RequestIDKey, "Retry-After"},
		AllowCredentials: true,
	}))

	// Routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admin API routes (callers are authenticated upstream)
	adminHandler := handlers.NewAdminHandler(deps.Service, zl).WithLimiter(deps.Limiter)
	if deps.Queue != nil {
		adminHandler.WithQueue(deps.Queue)
		r.POST("/api/admin/stores/deletions/queue/run", triggerQueue)
	}
	adminHandler.RegisterRoutes(r)
	zl.Info("Admin API routes registered at /api/admin/stores/*")

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// triggerQueue drains due deletion jobs now instead of waiting for the next poll
func triggerQueue(c *gin.Context) {
	// Run in background to avoid timeout
	go func() {
		n := deps.Scheduler.RunNow(context.Background())
		deps.Logger.Info("Manual queue run finished", zap.Int("processed", n))
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Deletion queue run started in background",
		"status":  "running",
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
