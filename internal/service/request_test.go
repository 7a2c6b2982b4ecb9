package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/identity"
)

func resetLink(link string) bool {
	return strings.HasPrefix(link, testResetURL+"?oobCode=")
}

func TestRequestService_SubmitRegistration(t *testing.T) {
	ctx := context.Background()
	svc := newFixture(t).requestService(true)

	t.Run("RoleIgnored", func(t *testing.T) {
		req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{
			Name:       "  Ana Pérez ",
			Email:      "Ana@Example.com",
			NationalID: "30111222",
			Role:       domain.RoleAdmin,
			ActivityID: "a1",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RequestKindRegistration, req.Kind)
		assert.Equal(t, domain.RequestStatusPending, req.Status)
		assert.Equal(t, "Ana Pérez", req.Payload.Name)
		assert.Equal(t, "ana@example.com", req.Payload.Email)
		assert.Empty(t, req.Payload.Role)
		assert.Empty(t, req.Payload.ActivityID)
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		_, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Ana", Email: "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	})

	t.Run("MissingName", func(t *testing.T) {
		_, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Email: "ana@example.com"})
		assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	})
}

func TestRequestService_ApproveRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)

	req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Ana Pérez", Email: "ana@example.com", Address: "Calle 1"})
	require.NoError(t, err)

	f.email.On("SendPasswordSetup", mock.Anything, "ana@example.com", "Ana Pérez", mock.MatchedBy(resetLink)).Return(nil).Once()

	approved, err := svc.Approve(ctx, req.ID, nil, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, approved.Status)

	stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, stored.Status)
	assert.Equal(t, "admin-1", stored.ReviewedBy)
	require.NotNil(t, stored.ReviewedAt)
	require.NotNil(t, stored.Progress)

	residents, err := f.store.UserRepository.List(ctx, domain.RoleResident)
	require.NoError(t, err)
	require.Len(t, residents, 1)
	assert.Equal(t, stored.Progress.AccountUID, residents[0].ID)
	assert.Equal(t, "ana@example.com", residents[0].Email)
	assert.Equal(t, "Calle 1", residents[0].Address)
	assert.Equal(t, domain.MembershipActive, residents[0].MembershipStatus)

	assert.Len(t, f.accounts(t), 1)
	assert.Equal(t, 1, f.idp.closed)

	// second approval of the same request
	_, err = svc.Approve(ctx, req.ID, nil, "admin-2")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Len(t, f.accounts(t), 1)

	f.email.AssertExpectations(t)
}

func TestRequestService_ApproveRegistration_RoleOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)

	req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Beto", Email: "beto@example.com"})
	require.NoError(t, err)
	f.email.On("SendPasswordSetup", mock.Anything, "beto@example.com", "Beto", mock.Anything).Return(nil).Once()

	_, err = svc.Approve(ctx, req.ID, &domain.RequestPayload{Role: domain.RoleAdmin}, "admin-1")
	require.NoError(t, err)

	admins, err := f.store.UserRepository.List(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "beto@example.com", admins[0].Email)
}

func TestRequestService_ApproveRegistration_EmailInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)

	prov, err := f.idp.Begin(ctx)
	require.NoError(t, err)
	_, err = prov.CreateAccount(ctx, "ana@example.com", "secreto", "Ana")
	require.NoError(t, err)
	require.NoError(t, prov.Close())

	req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, nil, "admin-1")
	assert.ErrorIs(t, err, ErrEmailInUse)

	stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, stored.Status)
	assert.Equal(t, 2, f.idp.closed)
}

func TestRequestService_ApproveRegistration_PartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	start := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	identityDown := errors.New("identity service unavailable")
	f.idp.resetErr = identityDown

	_, err = svc.Approve(ctx, req.ID, nil, "admin-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, identityDown)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, 1, f.idp.closed)

	// account and profile exist, request still pending
	stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, stored.Status)
	require.NotNil(t, stored.Progress)
	assert.NotEmpty(t, stored.Progress.AccountUID)
	assert.True(t, stored.Progress.ProfileWritten)
	assert.False(t, stored.Progress.ResetLinkSent)
	assert.Len(t, f.accounts(t), 1)
	_, err = f.store.UserRepository.GetByID(ctx, stored.Progress.AccountUID)
	require.NoError(t, err)

	t.Run("ReconcileWaitsForGrace", func(t *testing.T) {
		n, err := svc.ReconcileRegistrations(ctx, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("ReconcileResumes", func(t *testing.T) {
		f.idp.resetErr = nil
		svc.now = func() time.Time { return start.Add(time.Hour) }
		f.email.On("SendPasswordSetup", mock.Anything, "ana@example.com", "Ana", mock.MatchedBy(resetLink)).Return(nil).Once()

		n, err := svc.ReconcileRegistrations(ctx, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusApproved, stored.Status)
		assert.Equal(t, ReconcilerID, stored.ReviewedBy)
		assert.Len(t, f.accounts(t), 1)

		users, err := f.store.UserRepository.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, users, 1)
		f.email.AssertExpectations(t)
	})
}

func TestRequestService_ReconcileRegistrations_KeepsReviewerOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	start := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Ana", Email: "ana@exmaple.com"})
	require.NoError(t, err)

	f.idp.resetErr = errors.New("identity service unavailable")
	_, err = svc.Approve(ctx, req.ID, &domain.RequestPayload{Email: "ana@example.com", Role: domain.RoleAdmin}, "admin-1")
	require.Error(t, err)

	stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", stored.Payload.Email)
	assert.Equal(t, domain.RoleAdmin, stored.Payload.Role)

	f.idp.resetErr = nil
	svc.now = func() time.Time { return start.Add(time.Hour) }
	f.email.On("SendPasswordSetup", mock.Anything, "ana@example.com", "Ana", mock.MatchedBy(resetLink)).Return(nil).Once()

	n, err := svc.ReconcileRegistrations(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.email.AssertExpectations(t)

	profile, err := f.store.UserRepository.GetByID(ctx, stored.Progress.AccountUID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.Equal(t, domain.RoleAdmin, profile.Role)
}

func TestRequestService_ReconcileRegistrations_Legacy(t *testing.T) {
	n, err := newFixture(t).requestService(false).ReconcileRegistrations(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRequestService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)

	req, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, req.ID, "admin-1"))

	stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, stored.Status)
	assert.Equal(t, "admin-1", stored.ReviewedBy)
	assert.Empty(t, f.accounts(t))
	users, err := f.store.UserRepository.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, users)

	t.Run("ApproveAfterReject", func(t *testing.T) {
		_, err := svc.Approve(ctx, req.ID, nil, "admin-1")
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
	})

	t.Run("RejectTwice", func(t *testing.T) {
		assert.ErrorIs(t, svc.Reject(ctx, req.ID, "admin-1"), ErrAlreadyReviewed)
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, StatusOf(svc.Reject(ctx, "missing", "admin-1")))
	})

	t.Run("NoReviewer", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, StatusOf(svc.Reject(ctx, req.ID, "")))
	})

	f.email.AssertNotCalled(t, "SendPasswordSetup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestService_Reject_NoSideEffects(t *testing.T) {
	ctx := context.Background()

	t.Run("Enrollment", func(t *testing.T) {
		f := newFixture(t)
		svc := f.requestService(true)
		f.addResident(t, "u1", "Ana", "ana@example.com")
		activity := f.addActivity(t, 2)

		req, err := svc.SubmitEnrollment(ctx, "u1", activity.ID)
		require.NoError(t, err)
		require.NoError(t, svc.Reject(ctx, req.ID, "admin-1"))

		stored, err := f.store.ActivityRepository.GetByID(ctx, activity.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Remaining)
		enrollments, err := f.store.ActivityRepository.ListEnrollments(ctx, activity.ID)
		require.NoError(t, err)
		assert.Empty(t, enrollments)

		rejected, err := f.store.RequestRepository.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusRejected, rejected.Status)
		assert.Equal(t, "admin-1", rejected.ReviewedBy)
	})

	t.Run("Certificate", func(t *testing.T) {
		f := newFixture(t)
		svc := f.requestService(true)
		f.addResident(t, "u1", "Ana", "ana@example.com")

		req, err := svc.SubmitCertificate(ctx, "u1", "residencia", "trámite bancario")
		require.NoError(t, err)
		require.NoError(t, svc.Reject(ctx, req.ID, "admin-1"))

		exists, _, err := f.storage.FileExists(ctx, CertificateKey(req.ID))
		require.NoError(t, err)
		assert.False(t, exists)

		rejected, err := f.store.RequestRepository.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusRejected, rejected.Status)
		assert.Empty(t, rejected.Payload.CertificateURL)
		assert.Empty(t, f.accounts(t))
	})
}

func TestRequestService_ApproveEnrollment_ConcurrentLastSlots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	activity := f.addActivity(t, 2)
	f.email.On("SendRequestStatusNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	const applicants = 10
	ids := make([]string, applicants)
	for i := range ids {
		req, err := svc.SubmitEnrollment(ctx, fmt.Sprintf("u%d", i), activity.ID)
		require.NoError(t, err)
		ids[i] = req.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, applicants)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Approve(ctx, id, nil, "admin-1")
		}(i, id)
	}
	wg.Wait()

	approved := 0
	for _, err := range errs {
		if err == nil {
			approved++
			continue
		}
		assert.ErrorIs(t, err, ErrCapacityExhausted)
	}
	assert.Equal(t, 2, approved)

	stored, err := f.store.ActivityRepository.GetByID(ctx, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Remaining)
	enrollments, err := f.store.ActivityRepository.ListEnrollments(ctx, activity.ID)
	require.NoError(t, err)
	assert.Len(t, enrollments, 2)
}

func TestRequestService_ApproveEnrollment_Capacity(t *testing.T) {
	for _, strict := range []bool{true, false} {
		name := "Legacy"
		if strict {
			name = "Strict"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			svc := f.requestService(strict)
			f.addResident(t, "u1", "Ana", "ana@example.com")
			f.addResident(t, "u2", "Beto", "beto@example.com")
			activity := f.addActivity(t, 1)
			f.email.On("SendRequestStatusNotification", mock.Anything, "ana@example.com", "Ana",
				domain.RequestKindActivityEnrollment, domain.RequestStatusApproved).Return(nil).Once()

			r1, err := svc.SubmitEnrollment(ctx, "u1", activity.ID)
			require.NoError(t, err)
			r2, err := svc.SubmitEnrollment(ctx, "u2", activity.ID)
			require.NoError(t, err)

			_, err = svc.Approve(ctx, r1.ID, nil, "admin-1")
			require.NoError(t, err)
			_, err = svc.Approve(ctx, r2.ID, nil, "admin-1")
			assert.ErrorIs(t, err, ErrCapacityExhausted)

			stored, err := f.store.ActivityRepository.GetByID(ctx, activity.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, stored.Remaining)

			enrollments, err := f.store.ActivityRepository.ListEnrollments(ctx, activity.ID)
			require.NoError(t, err)
			require.Len(t, enrollments, 1)
			assert.Equal(t, "u1", enrollments[0].UserID)
			assert.Equal(t, "Ana", enrollments[0].Name)

			pending, err := f.store.RequestRepository.GetByID(ctx, r2.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.RequestStatusPending, pending.Status)
			f.email.AssertExpectations(t)
		})
	}
}

func TestRequestService_ApproveEnrollment_Twice(t *testing.T) {
	ctx := context.Background()

	t.Run("LegacyAppliesTwice", func(t *testing.T) {
		f := newFixture(t)
		svc := f.requestService(false)
		f.addResident(t, "u1", "Ana", "ana@example.com")
		activity := f.addActivity(t, 2)
		f.email.On("SendRequestStatusNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		req, err := svc.SubmitEnrollment(ctx, "u1", activity.ID)
		require.NoError(t, err)
		_, err = svc.Approve(ctx, req.ID, nil, "admin-1")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, req.ID, nil, "admin-2")
		require.NoError(t, err)

		stored, err := f.store.ActivityRepository.GetByID(ctx, activity.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Remaining)
		enrollments, err := f.store.ActivityRepository.ListEnrollments(ctx, activity.ID)
		require.NoError(t, err)
		assert.Len(t, enrollments, 2)
	})

	t.Run("StrictAppliesOnce", func(t *testing.T) {
		f := newFixture(t)
		svc := f.requestService(true)
		f.addResident(t, "u1", "Ana", "ana@example.com")
		activity := f.addActivity(t, 2)
		f.email.On("SendRequestStatusNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		req, err := svc.SubmitEnrollment(ctx, "u1", activity.ID)
		require.NoError(t, err)
		_, err = svc.Approve(ctx, req.ID, nil, "admin-1")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, req.ID, nil, "admin-2")
		assert.ErrorIs(t, err, ErrAlreadyReviewed)

		stored, err := f.store.ActivityRepository.GetByID(ctx, activity.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Remaining)
		enrollments, err := f.store.ActivityRepository.ListEnrollments(ctx, activity.ID)
		require.NoError(t, err)
		assert.Len(t, enrollments, 1)

		approved, err := f.store.RequestRepository.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, "admin-1", approved.ReviewedBy)
	})
}

func TestRequestService_SubmitEnrollment_Closed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	activity := f.addActivity(t, 5)
	require.NoError(t, f.store.ActivityRepository.UpdateStatus(ctx, activity.ID, domain.ActivityCancelled))

	_, err := svc.SubmitEnrollment(ctx, "u1", activity.ID)
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	_, err = svc.SubmitEnrollment(ctx, "u1", "missing")
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestRequestService_ApproveCertificate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	f.addResident(t, "u1", "Ana", "ana@example.com")
	f.email.On("SendRequestStatusNotification", mock.Anything, "ana@example.com", "Ana",
		domain.RequestKindCertificate, domain.RequestStatusApproved).Return(nil).Once()

	req, err := svc.SubmitCertificate(ctx, "u1", "residencia", "trámite bancario")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", req.Payload.Email)

	approved, err := svc.Approve(ctx, req.ID, nil, "admin-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(approved.Payload.CertificateURL, "http://localhost:8080/api/v1/download/"))

	stored, err := f.store.RequestRepository.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, stored.Status)
	assert.Equal(t, approved.Payload.CertificateURL, stored.Payload.CertificateURL)
	assert.Equal(t, "residencia", stored.Payload.CertificateType)

	exists, size, err := f.storage.FileExists(ctx, CertificateKey(req.ID))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Positive(t, size)
	f.email.AssertExpectations(t)
}

func TestRequestService_NotificationFailureDoesNotFailApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	f.addResident(t, "u1", "Ana", "ana@example.com")
	activity := f.addActivity(t, 3)
	f.email.On("SendRequestStatusNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	req, err := svc.SubmitEnrollment(ctx, "u1", activity.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, nil, "admin-1")
	assert.NoError(t, err)
}

func TestRequestService_Approve_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newFixture(t).requestService(true)

	_, err := svc.Approve(ctx, "", nil, "admin-1")
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))

	_, err = svc.Approve(ctx, "r1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

	_, err = svc.Approve(ctx, "missing", nil, "admin-1")
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestRequestService_ListRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.requestService(true)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com"} {
		at := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return at }
		_, err := svc.SubmitRegistration(ctx, domain.RequestPayload{Name: "Vecino", Email: email})
		require.NoError(t, err)
	}
	f.addResident(t, "u1", "Ana", "ana@example.com")
	_, err := svc.SubmitCertificate(ctx, "u1", "residencia", "")
	require.NoError(t, err)

	all, err := svc.ListRequests(ctx, domain.RequestStatusPending, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	regs, err := svc.ListRequests(ctx, domain.RequestStatusPending, domain.RequestKindRegistration)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "b@example.com", regs[0].Payload.Email)
}

var _ identity.Provider = (*flakyProvider)(nil)
