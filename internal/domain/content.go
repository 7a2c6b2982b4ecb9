package domain

import "time"

// Post is a news item
type Post struct {
	ID        string    `json:"id" firestore:"-"`
	Title     string    `json:"titulo" firestore:"titulo" validate:"required,max=200"`
	Body      string    `json:"contenido" firestore:"contenido" validate:"required"`
	ImageURL  string    `json:"imagenUrl,omitempty" firestore:"imagenUrl,omitempty"`
	AuthorID  string    `json:"autorId" firestore:"autorId"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Project is a community project shown on the portal
type Project struct {
	ID          string    `json:"id" firestore:"-"`
	Title       string    `json:"titulo" firestore:"titulo" validate:"required,max=200"`
	Description string    `json:"descripcion" firestore:"descripcion"`
	Status      string    `json:"estado" firestore:"estado"`
	ImageURL    string    `json:"imagenUrl,omitempty" firestore:"imagenUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}
