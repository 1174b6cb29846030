package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/core/services"
	httphandlers "parley/internal/handlers/http"
	"parley/internal/infrastructure/middleware"
	"parley/internal/infrastructure/monitoring"
	repositories "parley/internal/infrastructure/repositories"
	signalws "parley/internal/infrastructure/signal"
	"parley/pkg/config"
	"parley/pkg/logger"
	"parley/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Config errors are fatal before the logger exists
		panic(err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "parley",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Errorw("tracer shutdown failed", "error", err)
		}
	}()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	meetingRepo := repoFactory.CreateMeetingRepository()

	// Initialize monitoring
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	// Initialize core services
	registry := services.NewSessionRegistry()
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	hub := signalws.NewHub(cfg.Signal.WriteTimeout)
	roomService := services.NewRoomService(registry, meetingRepo, hub, collector, log)
	relayService := services.NewSignalRelay(registry, hub, collector, log)
	chatService := services.NewChatRelay(registry, hub, collector, log)

	wsServer := signalws.NewWebSocketServer(
		registry, roomService, relayService, chatService, authService, hub, collector,
		signalws.ServerConfig{
			PingInterval:      cfg.Signal.PingInterval,
			PongTimeout:       cfg.Signal.PongTimeout,
			ReadTimeout:       cfg.Signal.ReadTimeout,
			WriteTimeout:      cfg.Signal.WriteTimeout,
			AllowedOrigins:    cfg.Auth.AllowedOrigins,
			MaxChatMessageLen: cfg.Meetings.MaxChatMessageLen,
			MaxDisplayNameLen: cfg.Meetings.MaxDisplayNameLen,
			MessagesPerSecond: wsMessageRate(cfg),
			MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
		},
		log,
	)

	roomHandler := httphandlers.NewRoomHandler(registry)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))
	router.GET("/healthz", gin.WrapF(wsServer.HealthCheck))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.GET("/rooms", roomHandler.ListRooms)
		api.GET("/rooms/:id/participants", roomHandler.GetRoomParticipants)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Parley session coordinator on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Parley session coordinator...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}

	log.Info("Parley session coordinator stopped")
}

func wsMessageRate(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}
