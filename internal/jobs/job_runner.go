package jobs

import (
	"context"
	"fmt"
	"time"

	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/service"
)

const (
	JobFinishPastActivities = "finish-past-activities"
	JobReconcileApprovals   = "reconcile-approvals"
	JobAllNightly           = "all-nightly"
)

// jobTimeout bounds a single run
const jobTimeout = 5 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   config.SchedulerConfig
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Activity service.ActivityService
	Request  service.RequestService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg config.SchedulerConfig) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		now:      time.Now,
	}
}

// Config returns the schedules the runner was built with
func (jr *JobRunner) Config() config.SchedulerConfig {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and records the outcome
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
		metrics.JobRuns.WithLabelValues(jobName, metrics.Result(err)).Inc()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	if err = jobFunc(ctx); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err)
		return
	}
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
}

// RunAllNightlyJobs runs all nightly jobs (for manual execution)
func (jr *JobRunner) RunAllNightlyJobs() {
	jr.FinishPastActivities()
	jr.ReconcileApprovals()
}

// RunJob runs one job by name
func (jr *JobRunner) RunJob(name string) error {
	switch name {
	case JobFinishPastActivities:
		jr.FinishPastActivities()
	case JobReconcileApprovals:
		jr.ReconcileApprovals()
	case JobAllNightly:
		jr.RunAllNightlyJobs()
	default:
		return fmt.Errorf("unknown job: %s", name)
	}
	return nil
}
