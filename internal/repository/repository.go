package repository

import (
	"context"
	"errors"
	"time"

	"mibarrio-backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNotPending        = errors.New("request already reviewed")
	ErrCapacityExhausted = errors.New("activity has no remaining capacity")
	ErrOverlap           = errors.New("reservation overlaps an existing one")
)

// Review is the terminal mark written on a request
type Review struct {
	RequestID  string
	Status     domain.RequestStatus
	ReviewedBy string
	ReviewedAt time.Time
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, uid string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateRole(ctx context.Context, uid string, role domain.Role) error
	Delete(ctx context.Context, uid string) error
	// List returns all profiles, or only those with role when it is set
	List(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	List(ctx context.Context, status domain.RequestStatus, kind domain.RequestKind) ([]domain.Request, error)
	UpdatePayload(ctx context.Context, id string, payload domain.RequestPayload) error
	// SaveProgress records the approval steps together with the payload they were run with
	SaveProgress(ctx context.Context, id string, payload domain.RequestPayload, progress *domain.ApprovalProgress) error
	// MarkReviewed writes the review unconditionally
	MarkReviewed(ctx context.Context, review Review) error
	// MarkReviewedIfPending writes the review only if the request is still pending, else ErrNotPending
	MarkReviewedIfPending(ctx context.Context, review Review) error
}

type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) error
	GetByID(ctx context.Context, id string) (*domain.Activity, error)
	List(ctx context.Context, status domain.ActivityStatus) ([]domain.Activity, error)
	UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error
	ListActiveBefore(ctx context.Context, date string) ([]domain.Activity, error)

	AddEnrollment(ctx context.Context, enrollment *domain.Enrollment) error
	// DecrementRemaining subtracts one slot without checking the floor
	DecrementRemaining(ctx context.Context, activityID string) error
	// EnrollAtomic re-checks capacity, writes the enrollment and the decrement in one transaction.
	// When review is set the request is marked in the same transaction and must still be pending.
	EnrollAtomic(ctx context.Context, enrollment *domain.Enrollment, review *Review) error
	ListEnrollments(ctx context.Context, activityID string) ([]domain.Enrollment, error)
}

type SpaceRepository interface {
	Create(ctx context.Context, space *domain.Space) error
	GetByID(ctx context.Context, id string) (*domain.Space, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Space, error)
	Update(ctx context.Context, space *domain.Space) error
	Delete(ctx context.Context, id string) error
}

type ReservationRepository interface {
	// CreateIfFree stores the reservation unless it overlaps another one of the same space and date
	CreateIfFree(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	ListBySpace(ctx context.Context, spaceID, date string) ([]domain.Reservation, error)
	Delete(ctx context.Context, id string) error
}

type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	List(ctx context.Context, limit int) ([]domain.Post, error)
	Delete(ctx context.Context, id string) error
}

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	Delete(ctx context.Context, id string) error
}
