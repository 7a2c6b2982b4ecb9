package domain

import "time"

type ActivityStatus string

const (
	ActivityActive    ActivityStatus = "active"
	ActivityFinished  ActivityStatus = "finished"
	ActivityCancelled ActivityStatus = "cancelled"
)

func (s ActivityStatus) Valid() bool {
	return s == ActivityActive || s == ActivityFinished || s == ActivityCancelled
}

// Activity is a scheduled community event with a capacity limit.
// Remaining is decremented once per enrollment and never restored.
type Activity struct {
	ID          string         `json:"id" firestore:"-"`
	Title       string         `json:"titulo" firestore:"titulo" validate:"required,max=200"`
	Description string         `json:"descripcion" firestore:"descripcion"`
	Date        string         `json:"fecha" firestore:"fecha" validate:"datetime=2006-01-02"`
	Time        string         `json:"hora" firestore:"hora" validate:"omitempty,datetime=15:04"`
	Place       string         `json:"lugar" firestore:"lugar"`
	Capacity    int            `json:"cupoTotal" firestore:"cupoTotal" validate:"gt=0"`
	Remaining   int            `json:"cupoDisponible" firestore:"cupoDisponible"`
	Status      ActivityStatus `json:"estado" firestore:"estado"`
	CreatedAt   time.Time      `json:"createdAt" firestore:"createdAt"`
}

// Enrollment is stored under activities/{activityId}/enrollments.
type Enrollment struct {
	ID         string    `json:"id" firestore:"-"`
	ActivityID string    `json:"actividadId" firestore:"actividadId"`
	UserID     string    `json:"userId" firestore:"userId"`
	Name       string    `json:"nombre" firestore:"nombre"`
	Email      string    `json:"email" firestore:"email"`
	EnrolledAt time.Time `json:"fechaInscripcion" firestore:"fechaInscripcion"`
}
