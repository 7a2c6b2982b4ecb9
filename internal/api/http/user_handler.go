package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"mibarrio-backend/internal/domain"
)

type roleUpdate struct {
	Role domain.Role `json:"role"`
}

type profileUpdate struct {
	Name       string `json:"nombre"`
	NationalID string `json:"dni"`
	Address    string `json:"direccion"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		WriteError(w, http.StatusBadRequest, "Rol inválido.")
		return
	}
	users, err := s.deps.Users.ListUsers(r.Context(), role)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Users.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	var body roleUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.deps.Users.UpdateRole(r.Context(), principalFrom(r.Context()).UID, mux.Vars(r)["id"], body.Role); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Rol actualizado.")
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Users.DeleteUser(r.Context(), principalFrom(r.Context()).UID, mux.Vars(r)["id"]); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Usuario eliminado.")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Users.GetUser(r.Context(), principalFrom(r.Context()).UID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var body profileUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	user, err := s.deps.Users.UpdateProfile(r.Context(), principalFrom(r.Context()).UID, body.Name, body.NationalID, body.Address)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}
