package service

import (
	"context"
	"io"
	"time"

	"mibarrio-backend/internal/domain"
)

// CallableResult is the {success, message} envelope of the privileged callable operations
type CallableResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RequestService interface {
	SubmitRegistration(ctx context.Context, payload domain.RequestPayload) (*domain.Request, error)
	SubmitCertificate(ctx context.Context, userID, certificateType, reason string) (*domain.Request, error)
	SubmitEnrollment(ctx context.Context, userID, activityID string) (*domain.Request, error)
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	ListRequests(ctx context.Context, status domain.RequestStatus, kind domain.RequestKind) ([]domain.Request, error)
	// Approve applies the kind-specific side effects. payload overrides stored fields when set.
	Approve(ctx context.Context, requestID string, payload *domain.RequestPayload, reviewerID string) (*domain.Request, error)
	Reject(ctx context.Context, requestID, reviewerID string) error
	// ReconcileRegistrations finishes registration approvals interrupted for longer than grace
	ReconcileRegistrations(ctx context.Context, grace time.Duration) (int, error)
}

type ActivityService interface {
	CreateActivity(ctx context.Context, activity *domain.Activity) error
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)
	ListActivities(ctx context.Context, status domain.ActivityStatus) ([]domain.Activity, error)
	UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error
	Enroll(ctx context.Context, activityID, userID string) (*domain.Enrollment, error)
	ListEnrollments(ctx context.Context, activityID string) ([]domain.Enrollment, error)
	// FinishPastActivities marks active activities dated before today as finished
	FinishPastActivities(ctx context.Context, today time.Time) (int, error)
}

type BroadcastService interface {
	SendBroadcastEmail(ctx context.Context, subject, body string) (*CallableResult, error)
}

// NewUser is the input of direct admin provisioning
type NewUser struct {
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"min=6"`
	Name       string      `json:"nombre" validate:"required,max=200"`
	NationalID string      `json:"dni" validate:"max=20"`
	Address    string      `json:"direccion" validate:"max=200"`
	Role       domain.Role `json:"role" validate:"omitempty,oneof=admin resident"`
}

type UserService interface {
	CreateUser(ctx context.Context, input NewUser) (*domain.User, error)
	GetUser(ctx context.Context, uid string) (*domain.User, error)
	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
	UpdateRole(ctx context.Context, actorID, uid string, role domain.Role) error
	UpdateProfile(ctx context.Context, uid, name, nationalID, address string) (*domain.User, error)
	DeleteUser(ctx context.Context, actorID, uid string) error
}

type SpaceService interface {
	CreateSpace(ctx context.Context, space *domain.Space) error
	GetSpace(ctx context.Context, id string) (*domain.Space, error)
	ListSpaces(ctx context.Context, activeOnly bool) ([]domain.Space, error)
	UpdateSpace(ctx context.Context, space *domain.Space) error
	DeleteSpace(ctx context.Context, id string) error
	Reserve(ctx context.Context, reservation *domain.Reservation) error
	ListReservations(ctx context.Context, spaceID, date string) ([]domain.Reservation, error)
	CancelReservation(ctx context.Context, actorID string, actorIsAdmin bool, spaceID, reservationID string) error
}

type ContentService interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	ListPosts(ctx context.Context, limit int) ([]domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

type UploadService interface {
	// Upload stores an image under folder and returns its URL
	Upload(ctx context.Context, folder, filename, contentType string, size int64, reader io.Reader) (string, error)
}

type EmailService interface {
	SendPasswordSetup(ctx context.Context, email, name, resetLink string) error
	SendBroadcast(ctx context.Context, bcc []string, subject, htmlBody string) error
	SendRequestStatusNotification(ctx context.Context, email, name string, kind domain.RequestKind, status domain.RequestStatus) error
}

// SessionNotifier is told when a user's role changes so live sessions re-resolve it
type SessionNotifier interface {
	TokenRefreshed(uid string)
}
