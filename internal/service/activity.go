package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/repository"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type activityService struct {
	activityRepo repository.ActivityRepository
	userRepo     repository.UserRepository
	strict       bool
	now          func() time.Time
}

func NewActivityService(activityRepo repository.ActivityRepository, userRepo repository.UserRepository, strict bool) ActivityService {
	return &activityService{
		activityRepo: activityRepo,
		userRepo:     userRepo,
		strict:       strict,
		now:          time.Now,
	}
}

// newEnrollment copies name and email from the profile when the caller did not provide them
func newEnrollment(ctx context.Context, userRepo repository.UserRepository, activityID, userID, name, email string, at time.Time) *domain.Enrollment {
	if name == "" || email == "" {
		if user, err := userRepo.GetByID(ctx, userID); err == nil {
			if name == "" {
				name = user.Name
			}
			if email == "" {
				email = user.Email
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Failed to load profile for enrollment", "userID", userID, "error", err)
		}
	}
	return &domain.Enrollment{
		ActivityID: activityID,
		UserID:     userID,
		Name:       name,
		Email:      email,
		EnrolledAt: at,
	}
}

func validateActivity(a *domain.Activity) error {
	a.Title = strings.TrimSpace(a.Title)
	return checkInput(a, "La actividad necesita un título.", map[string]string{
		"Date":     "La fecha debe tener el formato AAAA-MM-DD.",
		"Time":     "La hora debe tener el formato HH:MM.",
		"Capacity": "El cupo debe ser mayor a cero.",
	})
}

func (s *activityService) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	logger.EnterMethod("ActivityService.CreateActivity")
	if err := validateActivity(activity); err != nil {
		return err
	}
	activity.Remaining = activity.Capacity
	activity.Status = domain.ActivityActive
	activity.CreatedAt = s.now()

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return failure("ActivityService.CreateActivity", err, "No se pudo crear la actividad.")
	}
	logger.ExitMethod("ActivityService.CreateActivity", "activityID", activity.ID)
	return nil
}

func (s *activityService) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	activity, err := s.activityRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("La actividad no existe.")
	}
	if err != nil {
		return nil, failure("ActivityService.GetActivity", err, "No se pudo cargar la actividad.", "activityID", id)
	}
	return activity, nil
}

func (s *activityService) ListActivities(ctx context.Context, status domain.ActivityStatus) ([]domain.Activity, error) {
	if status != "" && !status.Valid() {
		return nil, ErrBadRequest("Estado de actividad inválido.")
	}
	activities, err := s.activityRepo.List(ctx, status)
	if err != nil {
		return nil, failure("ActivityService.ListActivities", err, "No se pudieron cargar las actividades.")
	}
	return activities, nil
}

func (s *activityService) UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error {
	if !status.Valid() {
		return ErrBadRequest("Estado de actividad inválido.")
	}
	err := s.activityRepo.UpdateStatus(ctx, id, status)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("La actividad no existe.")
	}
	if err != nil {
		return failure("ActivityService.UpdateStatus", err, "No se pudo actualizar la actividad.", "activityID", id)
	}
	return nil
}

// Enroll signs userID up for the activity. Legacy mode reads then writes; strict mode
// repeats the capacity check inside the transaction that writes both documents.
func (s *activityService) Enroll(ctx context.Context, activityID, userID string) (*domain.Enrollment, error) {
	const method = "ActivityService.Enroll"
	logger.EnterMethod(method, "activityID", activityID, "userID", userID)
	if err := checkInput(enrollmentInput{ActivityID: activityID, UserID: userID}, "Falta la actividad o el usuario.", nil); err != nil {
		return nil, err
	}

	// 1. Capacity precondition
	activity, err := s.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.Status != domain.ActivityActive {
		return nil, ErrConflict("La actividad no está abierta a inscripciones.")
	}
	if activity.Remaining <= 0 {
		metrics.Enrollments.WithLabelValues("capacity_exhausted").Inc()
		return nil, ErrCapacityExhausted
	}

	// 2. Enrollment record and decrement
	enrollment := newEnrollment(ctx, s.userRepo, activityID, userID, "", "", s.now())
	if s.strict {
		err := s.activityRepo.EnrollAtomic(ctx, enrollment, nil)
		if errors.Is(err, repository.ErrCapacityExhausted) {
			metrics.Enrollments.WithLabelValues("capacity_exhausted").Inc()
			return nil, ErrCapacityExhausted
		}
		if err != nil {
			return nil, failure(method, err, "No se pudo completar la inscripción.", "activityID", activityID)
		}
	} else {
		if err := s.activityRepo.AddEnrollment(ctx, enrollment); err != nil {
			return nil, failure(method, err, "No se pudo completar la inscripción.", "activityID", activityID)
		}
		if err := s.activityRepo.DecrementRemaining(ctx, activityID); err != nil {
			return nil, failure(method, err, "No se pudo actualizar el cupo de la actividad.", "activityID", activityID)
		}
	}

	metrics.Enrollments.WithLabelValues("ok").Inc()
	logger.ExitMethod(method, "activityID", activityID, "enrollmentID", enrollment.ID)
	return enrollment, nil
}

func (s *activityService) ListEnrollments(ctx context.Context, activityID string) ([]domain.Enrollment, error) {
	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	enrollments, err := s.activityRepo.ListEnrollments(ctx, activityID)
	if err != nil {
		return nil, failure("ActivityService.ListEnrollments", err, "No se pudieron cargar los inscriptos.", "activityID", activityID)
	}
	return enrollments, nil
}

func (s *activityService) FinishPastActivities(ctx context.Context, today time.Time) (int, error) {
	past, err := s.activityRepo.ListActiveBefore(ctx, today.Format(dateLayout))
	if err != nil {
		return 0, WrapError(err, "list past activities")
	}

	finished := 0
	for _, a := range past {
		if err := s.activityRepo.UpdateStatus(ctx, a.ID, domain.ActivityFinished); err != nil {
			logger.Error("Failed to finish activity", "activityID", a.ID, "error", err)
			continue
		}
		finished++
	}
	return finished, nil
}
