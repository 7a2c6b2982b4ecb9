package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mibarrio-backend/internal/bootstrap"
	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/jobs"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'finish-past-activities', 'reconcile-approvals', 'all-nightly')")
	flag.Parse()

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Mi Barrio Digital cronjob runner...", "log_level", cfg.Log.Level)
	metrics.Init()

	backends, err := bootstrap.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", "error", err)
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer backends.Close()

	// Initialize Job Runner
	requestSvc, activitySvc := backends.RequestServices(cfg)
	jobRunner := jobs.NewJobRunner(&jobs.Services{Activity: activitySvc, Request: requestSvc}, cfg.Scheduler)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := jobRunner.RunJob(*runOnce); err != nil {
			logger.Error("Unknown job name", "job", *runOnce)
			fmt.Printf("Available jobs:\n")
			fmt.Printf("  - %s\n", jobs.JobFinishPastActivities)
			fmt.Printf("  - %s\n", jobs.JobReconcileApprovals)
			fmt.Printf("  - %s\n", jobs.JobAllNightly)
			backends.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}
