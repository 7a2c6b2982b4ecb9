package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mibarrio-backend/internal/domain"
)

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := s.deps.Content.ListPosts(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, posts)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var post domain.Post
	if !decodeJSON(w, r, &post) {
		return
	}
	post.ID = ""
	post.AuthorID = principalFrom(r.Context()).UID
	if err := s.deps.Content.CreatePost(r.Context(), &post); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, post)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.deps.Content.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Content.DeletePost(r.Context(), mux.Vars(r)["id"]); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Noticia eliminada.")
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Content.ListProjects(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var project domain.Project
	if !decodeJSON(w, r, &project) {
		return
	}
	project.ID = ""
	if err := s.deps.Content.CreateProject(r.Context(), &project); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, project)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.deps.Content.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Content.DeleteProject(r.Context(), mux.Vars(r)["id"]); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Proyecto eliminado.")
}
