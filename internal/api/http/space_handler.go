package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"mibarrio-backend/internal/domain"
)

func (s *Server) listSpaces(w http.ResponseWriter, r *http.Request) {
	// residents only see spaces open for booking
	activeOnly := !principalFrom(r.Context()).IsAdmin() || r.URL.Query().Get("activos") == "true"
	spaces, err := s.deps.Spaces.ListSpaces(r.Context(), activeOnly)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, spaces)
}

func (s *Server) createSpace(w http.ResponseWriter, r *http.Request) {
	var space domain.Space
	if !decodeJSON(w, r, &space) {
		return
	}
	space.ID = ""
	if err := s.deps.Spaces.CreateSpace(r.Context(), &space); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, space)
}

func (s *Server) getSpace(w http.ResponseWriter, r *http.Request) {
	space, err := s.deps.Spaces.GetSpace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, space)
}

func (s *Server) updateSpace(w http.ResponseWriter, r *http.Request) {
	var space domain.Space
	if !decodeJSON(w, r, &space) {
		return
	}
	space.ID = mux.Vars(r)["id"]
	if err := s.deps.Spaces.UpdateSpace(r.Context(), &space); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, space)
}

func (s *Server) deleteSpace(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Spaces.DeleteSpace(r.Context(), mux.Vars(r)["id"]); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Espacio eliminado.")
}

func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := s.deps.Spaces.ListReservations(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("fecha"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, reservations)
}

func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var reservation domain.Reservation
	if !decodeJSON(w, r, &reservation) {
		return
	}
	reservation.ID = ""
	reservation.SpaceID = mux.Vars(r)["id"]
	reservation.UserID = principalFrom(r.Context()).UID
	if err := s.deps.Spaces.Reserve(r.Context(), &reservation); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, reservation)
}

func (s *Server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	p := principalFrom(r.Context())
	if err := s.deps.Spaces.CancelReservation(r.Context(), p.UID, p.IsAdmin(), vars["id"], vars["reservationId"]); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Reserva cancelada.")
}
