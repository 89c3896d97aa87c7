package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lenslink/internal/core/services"
	httphandlers "lenslink/internal/handlers/http"
	"lenslink/internal/infrastructure/middleware"
	"lenslink/internal/infrastructure/monitoring"
	"lenslink/internal/infrastructure/providers"
	"lenslink/internal/infrastructure/repositories"
	"lenslink/internal/infrastructure/signal"
	"lenslink/pkg/config"
	"lenslink/pkg/logger"
	"lenslink/pkg/tracing"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket hub and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Failed to flush traces", "error", err)
		}
	}()

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repoFactory.Close(); err != nil {
			log.Errorw("Error closing repository factory", "error", err)
		}
	}()

	registry := repoFactory.CreateDeviceRegistry()
	pairs, err := repoFactory.CreatePairingStore()
	if err != nil {
		return err
	}
	history, err := repoFactory.CreateHistoryStore(ctx)
	if err != nil {
		return err
	}
	media, err := repoFactory.CreateMediaStore(ctx)
	if err != nil {
		return err
	}

	gateway := providers.NewGatewayFromConfig(cfg, &http.Client{}, log)
	hub := signal.NewHub(hubConfig(cfg), registry, pairs, history, log)
	scanService := services.NewScanService(gateway, history, media, hub, cfg.Providers.Persona, log)
	hub.SetScanService(scanService)

	if cfg.Monitoring.PrometheusEnabled {
		collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
		hub.SetObserver(collector)
		gateway.SetObserver(collector)
		scanService.SetObserver(collector)
	}

	checker := monitoring.NewHealthChecker()
	checker.AddDataDirCheck(cfg.Storage.DataDir)
	if client := repoFactory.RedisClient(); client != nil {
		checker.AddRedisCheck(client, 2*time.Second)
	}

	router := newRouter(cfg, log, logger.NewContextLogger(zapLogger))
	httphandlers.NewScanHandler(scanService, cfg.Server.MaxUploadBytes).SetupRoutes(router)
	httphandlers.NewQueryHandler(history, registry, pairs).SetupRoutes(router)
	httphandlers.NewHealthHandler(checker, hub.ConnectionCount).SetupRoutes(router)
	router.GET("/ws", gin.WrapF(hub.HandleWebSocket))

	if cfg.Media.Type == "file" {
		router.Static(cfg.Media.URLPrefix, cfg.MediaPath())
	}
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		// /analyze holds the response until the provider answers
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting lenslink server",
			"address", cfg.Server.Address,
			"provider", cfg.Providers.Default,
			"providers", gateway.Providers(),
			"redis", repoFactory.UsingRedis(),
			"media", cfg.Media.Type,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
		return err
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Background work did not finish before shutdown", "error", err)
	}

	log.Info("lenslink server stopped")
	return nil
}

func newRouter(cfg *config.Config, log *zap.SugaredLogger, requestLog *logger.ContextLogger) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(requestLog),
		middleware.TracingMiddleware(),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)
	return router
}

func hubConfig(cfg *config.Config) signal.Config {
	hc := signal.Config{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		SendBuffer:     cfg.Signal.SendBuffer,
		MaxMessageSize: cfg.Signal.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
		RequirePairing: cfg.Signal.RequirePairing,
		ICEServers:     iceServers(cfg),
	}
	if cfg.RateLimiting.Enabled {
		hc.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		hc.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	return hc
}

// iceServers converts the configured STUN/TURN servers, falling back to a
// public STUN server.
func iceServers(cfg *config.Config) []webrtc.ICEServer {
	if len(cfg.WebRTC.ICEServers) == 0 {
		return []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		server := webrtc.ICEServer{
			URLs:     s.URLs,
			Username: s.Username,
		}
		if s.Credential != "" {
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	return servers
}
