package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"mibarrio-backend/internal/domain"
)

type statusUpdate struct {
	Status domain.ActivityStatus `json:"estado"`
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	status := domain.ActivityStatus(r.URL.Query().Get("estado"))
	if status != "" && !status.Valid() {
		WriteError(w, http.StatusBadRequest, "Estado de actividad inválido.")
		return
	}
	activities, err := s.deps.Activities.ListActivities(r.Context(), status)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, activities)
}

func (s *Server) createActivity(w http.ResponseWriter, r *http.Request) {
	var activity domain.Activity
	if !decodeJSON(w, r, &activity) {
		return
	}
	activity.ID = ""
	if err := s.deps.Activities.CreateActivity(r.Context(), &activity); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, activity)
}

func (s *Server) getActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.deps.Activities.GetActivity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, activity)
}

func (s *Server) updateActivityStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.deps.Activities.UpdateStatus(r.Context(), mux.Vars(r)["id"], body.Status); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Estado actualizado.")
}

func (s *Server) listEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := s.deps.Activities.ListEnrollments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, enrollments)
}

// enroll takes a seat for the caller directly
func (s *Server) enroll(w http.ResponseWriter, r *http.Request) {
	enrollment, err := s.deps.Activities.Enroll(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()).UID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, enrollment)
}
