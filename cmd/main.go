// Package main is the entry point of the Deckhand container management server.
// It wires the runtime client, audit database, services and HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nfcunha/deckhand/core/broker"
	"nfcunha/deckhand/core/models"
	"nfcunha/deckhand/core/repository"
	"nfcunha/deckhand/core/service"
	"nfcunha/deckhand/database"
	"nfcunha/deckhand/handler"
	"nfcunha/deckhand/handler/middleware"
	"nfcunha/deckhand/utils/config"
	"nfcunha/deckhand/utils/docker"
	"nfcunha/deckhand/utils/gitsource"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.Info("Starting Deckhand...")

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.Log.ConfigureLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	runtime, err := docker.NewClient(cfg.Docker.Host, cfg.Docker.Timeout, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Docker client")
	}
	defer runtime.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := runtime.Ping(pingCtx); err != nil {
		// Keep serving; calls report RuntimeUnavailable until the daemon comes back.
		logger.WithError(err).Warn("Docker daemon not reachable at startup")
	}
	cancel()

	actionLogs := repository.NewActionLogRepository(db)
	eventLogs := repository.NewEventLogRepository(db)
	healthLogs := repository.NewHealthCheckLogRepository(db)

	containerService := service.NewContainerService(runtime, actionLogs, logger)
	imageService := service.NewImageService(runtime, actionLogs, gitsource.NewCloner("", logger), logger)
	statsCache := service.NewStatsCache(runtime, cfg.Realtime.SnapshotInterval, logger)
	liveBroker := broker.New(runtime, containerService, broker.Config{
		SnapshotInterval: cfg.Realtime.SnapshotInterval,
		LogTail:          cfg.Realtime.LogTail,
	}, logger)

	if cfg.Realtime.SnapshotInterval > 0 {
		go statsCache.Run(ctx)
	}
	if cfg.HealthCheck.Enabled {
		checker := service.NewHealthChecker(runtime, healthLogs, eventLogs, service.HealthThresholds{
			CPU:    cfg.HealthCheck.CPUThreshold,
			Memory: cfg.HealthCheck.MemoryThreshold,
		}, logger)
		go checker.Run(ctx, cfg.HealthCheck.Interval)
	}
	go service.NewRetentionJob(map[string]service.Pruner{
		"action_logs":       actionLogs,
		"event_logs":        eventLogs,
		"health_check_logs": healthLogs,
	}, cfg.LogRetention.Days, logger).Run(ctx)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Server.Mode != "release" {
		engine.Use(gin.Logger())
	}

	engine.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, logger)
	if !auth.Enabled() {
		logger.Warn("No JWT secret configured, API authentication is disabled")
	}

	handler.Register(engine.Group("/deckhand"), handler.Handlers{
		Health:     handler.NewHealthHandler(runtime),
		Containers: handler.NewContainerHandler(containerService, statsCache),
		Logs:       handler.NewLogHandler(containerService, logger),
		Images:     handler.NewImageHandler(imageService, logger),
		Actions:    handler.NewActionHandler(actionLogs),
		Audit:      handler.NewAuditHandler(healthLogs, eventLogs, statsCache),
		Realtime:   handler.NewRealtimeHandler(liveBroker, cfg.Server.AllowedOrigins, logger),
	}, auth)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:        addr,
		Handler:     engine,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: progress and websocket streams outlive any fixed deadline.
	}

	go func() {
		logger.WithField("addr", addr).Info("Deckhand server listening, API available at /deckhand")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()
	service.RecordEvent(eventLogs, logger, "system", models.LevelInfo, "Server started", map[string]string{"addr": addr})

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	liveBroker.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}

	service.RecordEvent(eventLogs, logger, "system", models.LevelInfo, "Server stopped", nil)
	logger.Info("Server stopped gracefully")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
