package scheduler

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/jobs"
	"mibarrio-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.InitializeWithWriter("error", "text", io.Discard)
	os.Exit(m.Run())
}

func TestNewScheduler(t *testing.T) {
	runner := jobs.NewJobRunner(&jobs.Services{}, config.SchedulerConfig{
		FinishPastActivities: "0 5 0 * * *",
		ReconcileApprovals:   "0 */15 * * * *",
	})

	s, err := NewScheduler(runner)
	require.NoError(t, err)
	assert.True(t, s.IsRunning())
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	s.Stop()
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	runner := jobs.NewJobRunner(&jobs.Services{}, config.SchedulerConfig{
		FinishPastActivities: "every night",
		ReconcileApprovals:   "0 */15 * * * *",
	})

	_, err := NewScheduler(runner)
	assert.Error(t, err)
}
