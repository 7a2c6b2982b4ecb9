package jobs

import (
	"context"
	"time"

	"mibarrio-backend/internal/logger"
)

// ReconcileApprovals completes registration approvals that stopped partway and were
// left untouched for longer than the configured grace period.
func (jr *JobRunner) ReconcileApprovals() {
	jr.runWithRecovery(JobReconcileApprovals, func(ctx context.Context) error {
		grace := time.Duration(jr.config.ReconcileGraceMinutes) * time.Minute
		count, err := jr.services.Request.ReconcileRegistrations(ctx, grace)
		if err != nil {
			return err
		}
		if count > 0 {
			logger.Warn("Reconciled interrupted registration approvals", "count", count)
		}
		return nil
	})
}
