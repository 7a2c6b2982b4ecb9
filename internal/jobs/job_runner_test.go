package jobs

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/service"
)

func TestMain(m *testing.M) {
	logger.InitializeWithWriter("error", "text", io.Discard)
	os.Exit(m.Run())
}

type mockActivityService struct {
	service.ActivityService
	mock.Mock
}

func (m *mockActivityService) FinishPastActivities(ctx context.Context, today time.Time) (int, error) {
	args := m.Called(ctx, today)
	return args.Int(0), args.Error(1)
}

type mockRequestService struct {
	service.RequestService
	mock.Mock
}

func (m *mockRequestService) ReconcileRegistrations(ctx context.Context, grace time.Duration) (int, error) {
	args := m.Called(ctx, grace)
	return args.Int(0), args.Error(1)
}

func newRunner(activities *mockActivityService, requests *mockRequestService) *JobRunner {
	jr := NewJobRunner(&Services{Activity: activities, Request: requests}, config.SchedulerConfig{
		FinishPastActivities:  "0 5 0 * * *",
		ReconcileApprovals:    "0 */15 * * * *",
		ReconcileGraceMinutes: 30,
	})
	jr.now = func() time.Time { return time.Date(2026, 10, 16, 0, 5, 0, 0, time.UTC) }
	return jr
}

func TestFinishPastActivities(t *testing.T) {
	activities := new(mockActivityService)
	jr := newRunner(activities, new(mockRequestService))

	activities.On("FinishPastActivities", mock.Anything, time.Date(2026, 10, 16, 0, 5, 0, 0, time.UTC)).Return(3, nil)

	jr.FinishPastActivities()
	activities.AssertExpectations(t)
}

func TestReconcileApprovals_UsesGrace(t *testing.T) {
	requests := new(mockRequestService)
	jr := newRunner(new(mockActivityService), requests)

	requests.On("ReconcileRegistrations", mock.Anything, 30*time.Minute).Return(1, nil)

	jr.ReconcileApprovals()
	requests.AssertExpectations(t)
}

func TestRunWithRecovery(t *testing.T) {
	jr := newRunner(new(mockActivityService), new(mockRequestService))

	assert.NotPanics(t, func() {
		jr.runWithRecovery("panicky", func(ctx context.Context) error { panic("boom") })
	})
	assert.NotPanics(t, func() {
		jr.runWithRecovery("failing", func(ctx context.Context) error { return errors.New("unavailable") })
	})

	var deadline bool
	jr.runWithRecovery("bounded", func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})
	assert.True(t, deadline)
}

func TestRunJob(t *testing.T) {
	activities := new(mockActivityService)
	requests := new(mockRequestService)
	jr := newRunner(activities, requests)

	activities.On("FinishPastActivities", mock.Anything, mock.Anything).Return(0, nil).Once()
	requests.On("ReconcileRegistrations", mock.Anything, mock.Anything).Return(0, nil).Once()

	assert.NoError(t, jr.RunJob(JobAllNightly))
	assert.Error(t, jr.RunJob("mark-overdue-rentals"))

	activities.AssertExpectations(t)
	requests.AssertExpectations(t)
}
