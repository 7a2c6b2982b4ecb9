package docs

import (
	"context"
	"sort"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/repository"
)

type activityRepository struct {
	ds docstore.Store
}

func NewActivityRepository(ds docstore.Store) repository.ActivityRepository {
	return &activityRepository{ds: ds}
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	id, err := r.ds.Add(ctx, activitiesCollection, activity)
	if err != nil {
		return err
	}
	activity.ID = id
	return nil
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	activity := &domain.Activity{}
	if err := r.ds.Get(ctx, activitiesCollection, id, activity); err != nil {
		return nil, mapErr(err)
	}
	activity.ID = id
	return activity, nil
}

func setActivityID(a *domain.Activity, id string) { a.ID = id }

func (r *activityRepository) List(ctx context.Context, status domain.ActivityStatus) ([]domain.Activity, error) {
	q := docstore.Query{}
	if status != "" {
		q = q.Where("estado", docstore.OpEqual, status)
	}
	snaps, err := r.ds.Query(ctx, activitiesCollection, q)
	if err != nil {
		return nil, err
	}
	activities, err := decodeAll(snaps, setActivityID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].Date != activities[j].Date {
			return activities[i].Date < activities[j].Date
		}
		return activities[i].Time < activities[j].Time
	})
	return activities, nil
}

func (r *activityRepository) UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error {
	return mapErr(r.ds.Update(ctx, activitiesCollection, id, docstore.Field{Path: "estado", Value: status}))
}

func (r *activityRepository) ListActiveBefore(ctx context.Context, date string) ([]domain.Activity, error) {
	snaps, err := r.ds.Query(ctx, activitiesCollection, docstore.Query{}.
		Where("estado", docstore.OpEqual, domain.ActivityActive).
		Where("fecha", docstore.OpLess, date))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps, setActivityID)
}

func (r *activityRepository) AddEnrollment(ctx context.Context, enrollment *domain.Enrollment) error {
	id, err := r.ds.Add(ctx, enrollmentsCollection(enrollment.ActivityID), enrollment)
	if err != nil {
		return err
	}
	enrollment.ID = id
	return nil
}

func (r *activityRepository) DecrementRemaining(ctx context.Context, activityID string) error {
	return mapErr(r.ds.Update(ctx, activitiesCollection, activityID,
		docstore.Field{Path: "cupoDisponible", Value: docstore.Increment(-1)}))
}

func (r *activityRepository) EnrollAtomic(ctx context.Context, enrollment *domain.Enrollment, review *repository.Review) error {
	var enrollmentID string
	err := r.ds.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var activity domain.Activity
		if err := tx.Get(activitiesCollection, enrollment.ActivityID, &activity); err != nil {
			return err
		}
		if review != nil {
			var req domain.Request
			if err := tx.Get(requestsCollection, review.RequestID, &req); err != nil {
				return err
			}
			if !req.IsPending() {
				return repository.ErrNotPending
			}
		}
		if activity.Remaining <= 0 {
			return repository.ErrCapacityExhausted
		}

		id, err := tx.Add(enrollmentsCollection(enrollment.ActivityID), enrollment)
		if err != nil {
			return err
		}
		if err := tx.Update(activitiesCollection, enrollment.ActivityID,
			docstore.Field{Path: "cupoDisponible", Value: docstore.Increment(-1)}); err != nil {
			return err
		}
		if review != nil {
			if err := tx.Update(requestsCollection, review.RequestID, reviewFields(*review)...); err != nil {
				return err
			}
		}
		enrollmentID = id
		return nil
	})
	if err != nil {
		return mapErr(err)
	}
	enrollment.ID = enrollmentID
	return nil
}

func (r *activityRepository) ListEnrollments(ctx context.Context, activityID string) ([]domain.Enrollment, error) {
	snaps, err := r.ds.Query(ctx, enrollmentsCollection(activityID), docstore.Query{}.
		OrderBy("fechaInscripcion", docstore.Asc))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps, func(e *domain.Enrollment, id string) { e.ID = id })
}
