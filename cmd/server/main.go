package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	grpcapi "mibarrio-backend/internal/api/grpc"
	httpapi "mibarrio-backend/internal/api/http"
	"mibarrio-backend/internal/bootstrap"
	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/jobs"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/scheduler"
	"mibarrio-backend/internal/service"
	"mibarrio-backend/internal/session"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	withScheduler := flag.Bool("with-scheduler", false, "Run the cron jobs inside the server process")
	flag.Parse()

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Mi Barrio Digital backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "grpc_address", cfg.GetGRPCAddress())
	logger.Info("Backend configuration", "database", cfg.Database.Type, "identity", cfg.Identity.Type,
		"storage", cfg.Storage.Type, "mail", cfg.Mail.Provider, "consistency", cfg.Consistency.Mode)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", "error", err)
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer backends.Close()
	store := backends.Store

	// Session registry
	sessions := session.NewRegistry(store.UserRepository, 5*time.Second)
	registryCtx, stopRegistry := context.WithCancel(context.Background())
	registryDone := make(chan struct{})
	go func() {
		sessions.Run(registryCtx)
		close(registryDone)
	}()

	// Initialize Services
	requestSvc, activitySvc := backends.RequestServices(cfg)
	server := httpapi.NewServer(httpapi.Deps{
		Identity:        backends.Identity,
		Sessions:        sessions,
		Requests:        requestSvc,
		Activities:      activitySvc,
		Broadcast:       service.NewBroadcastService(store.UserRepository, backends.Email),
		Users:           service.NewUserService(store.UserRepository, backends.Identity, sessions),
		Spaces:          service.NewSpaceService(store.SpaceRepository, store.ReservationRepository),
		Content:         service.NewContentService(store.PostRepository, store.ProjectRepository),
		Uploads:         service.NewUploadService(backends.Storage, cfg.Storage.AllowedTypes, cfg.Storage.MaxFileSize),
		MockStorage:     backends.MockStorage,
		CorsOrigins:     cfg.Server.CorsOrigins,
		TrustedProxies:  cfg.Server.TrustedProxies,
		PublicRateRPS:   cfg.Server.PublicRateRPS,
		PublicRateBurst: cfg.Server.PublicRateBurst,
		MaxUploadMB:     cfg.Storage.MaxFileSize,
	})
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health side port
	health := grpcapi.NewHealthServer()
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}
	go func() {
		if err := health.Serve(lis); err != nil {
			logger.Error("gRPC health server error", "error", err)
		}
	}()

	var cronScheduler *scheduler.Scheduler
	if *withScheduler {
		runner := jobs.NewJobRunner(&jobs.Services{Activity: activitySvc, Request: requestSvc}, cfg.Scheduler)
		if cronScheduler, err = scheduler.NewScheduler(runner); err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		cronScheduler.Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}

	// Graceful shutdown
	health.SetServing(false)
	if cronScheduler != nil {
		cronScheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	stopRegistry()
	<-registryDone
	health.Stop()
	logger.Info("Server stopped. Goodbye!")
}
