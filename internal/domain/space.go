package domain

import "time"

// Space is a reservable shared resource (salón, cancha, quincho...)
type Space struct {
	ID       string `json:"id" firestore:"-"`
	Name     string `json:"nombre" firestore:"nombre" validate:"required,max=120"`
	Type     string `json:"tipo" firestore:"tipo"`
	Capacity int    `json:"capacidad" firestore:"capacidad" validate:"gte=0"`
	Location string `json:"ubicacion" firestore:"ubicacion"`
	Active   bool   `json:"activo" firestore:"activo"`
	ImageURL string `json:"imagenUrl,omitempty" firestore:"imagenUrl,omitempty"`
}

type Reservation struct {
	ID        string    `json:"id" firestore:"-"`
	SpaceID   string    `json:"espacioId" firestore:"espacioId"`
	UserID    string    `json:"userId" firestore:"userId"`
	Date      string    `json:"fecha" firestore:"fecha" validate:"datetime=2006-01-02"`
	StartTime string    `json:"horaInicio" firestore:"horaInicio" validate:"datetime=15:04"`
	EndTime   string    `json:"horaFin" firestore:"horaFin" validate:"datetime=15:04"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Overlaps reports whether two reservations of the same space share any minute
// on the same date. Touching ranges (one ends when the other starts) do not overlap.
func (r *Reservation) Overlaps(other *Reservation) bool {
	if r.SpaceID != other.SpaceID || r.Date != other.Date {
		return false
	}
	return r.StartTime < other.EndTime && other.StartTime < r.EndTime
}
