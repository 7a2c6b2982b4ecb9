package jobs

import (
	"context"

	"mibarrio-backend/internal/logger"
)

// FinishPastActivities marks active activities whose date has passed as finished
func (jr *JobRunner) FinishPastActivities() {
	jr.runWithRecovery(JobFinishPastActivities, func(ctx context.Context) error {
		count, err := jr.services.Activity.FinishPastActivities(ctx, jr.now())
		if err != nil {
			return err
		}
		logger.Info("Finished past activities", "count", count)
		return nil
	})
}
