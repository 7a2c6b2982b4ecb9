// Package http exposes the services as a JSON API under /api/v1.
package http

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mibarrio-backend/internal/identity"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/service"
	"mibarrio-backend/internal/session"
	"mibarrio-backend/internal/storage"
)

// Deps are the collaborators the handlers need
type Deps struct {
	Identity   identity.Provider
	Sessions   *session.Registry
	Requests   service.RequestService
	Activities service.ActivityService
	Broadcast  service.BroadcastService
	Users      service.UserService
	Spaces     service.SpaceService
	Content    service.ContentService
	Uploads    service.UploadService

	// MockStorage enables the local download route when files live on disk
	MockStorage *storage.MockStorageService

	CorsOrigins     []string
	TrustedProxies  []string
	PublicRateRPS   int
	PublicRateBurst int
	MaxUploadMB     int64
}

type Server struct {
	deps     Deps
	limiter  *ipRateLimiter
	upgrader websocket.Upgrader
}

func NewServer(deps Deps) *Server {
	s := &Server{
		deps:    deps,
		limiter: newIPRateLimiter(deps.PublicRateRPS, deps.PublicRateBurst, parseTrustedProxies(deps.TrustedProxies)),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Close stops background work owned by the server
func (s *Server) Close() {
	s.limiter.stop()
}

// Router builds the routing table. Authorization is decided per route template by the
// endpoint security table.
func (s *Server) Router() http.Handler {
	r := s.routes()
	if len(s.deps.CorsOrigins) == 0 {
		return r
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: s.deps.CorsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Instrument, s.authorize)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	if auth, ok := s.deps.Identity.(identity.PasswordAuthenticator); ok {
		h := &authHandler{auth: auth}
		api.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
		api.HandleFunc("/auth/reset-password", h.resetPassword).Methods(http.MethodPost)
	}
	if s.deps.MockStorage != nil {
		RegisterMockStorageRoutes(api, s.deps.MockStorage)
	}

	// Requests
	api.Handle("/requests/registration", s.limiter.middleware(http.HandlerFunc(s.submitRegistration))).Methods(http.MethodPost)
	api.HandleFunc("/requests/certificate", s.submitCertificate).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.listRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}", s.getRequest).Methods(http.MethodGet)

	// Callables
	api.HandleFunc("/callable/approveRequest", s.approveRequest).Methods(http.MethodPost)
	api.HandleFunc("/callable/rejectRequest", s.rejectRequest).Methods(http.MethodPost)
	api.HandleFunc("/callable/sendBroadcastEmail", s.sendBroadcastEmail).Methods(http.MethodPost)
	api.HandleFunc("/callable/createUser", s.createUser).Methods(http.MethodPost)

	// Activities
	api.HandleFunc("/activities", s.listActivities).Methods(http.MethodGet)
	api.HandleFunc("/activities", s.createActivity).Methods(http.MethodPost)
	api.HandleFunc("/activities/{id}", s.getActivity).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id}/status", s.updateActivityStatus).Methods(http.MethodPut)
	api.HandleFunc("/activities/{id}/enrollments", s.listEnrollments).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id}/enroll", s.enroll).Methods(http.MethodPost)
	api.HandleFunc("/activities/{id}/enrollment-requests", s.submitEnrollmentRequest).Methods(http.MethodPost)

	// Spaces & reservations
	api.HandleFunc("/spaces", s.listSpaces).Methods(http.MethodGet)
	api.HandleFunc("/spaces", s.createSpace).Methods(http.MethodPost)
	api.HandleFunc("/spaces/{id}", s.getSpace).Methods(http.MethodGet)
	api.HandleFunc("/spaces/{id}", s.updateSpace).Methods(http.MethodPut)
	api.HandleFunc("/spaces/{id}", s.deleteSpace).Methods(http.MethodDelete)
	api.HandleFunc("/spaces/{id}/reservations", s.listReservations).Methods(http.MethodGet)
	api.HandleFunc("/spaces/{id}/reservations", s.reserve).Methods(http.MethodPost)
	api.HandleFunc("/spaces/{id}/reservations/{reservationId}", s.cancelReservation).Methods(http.MethodDelete)

	// Content
	api.HandleFunc("/posts", s.listPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts", s.createPost).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id}", s.getPost).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}", s.deletePost).Methods(http.MethodDelete)
	api.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.deleteProject).Methods(http.MethodDelete)

	// Users
	api.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/role", s.updateRole).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", s.deleteUser).Methods(http.MethodDelete)
	api.HandleFunc("/me", s.me).Methods(http.MethodGet)
	api.HandleFunc("/me", s.updateMe).Methods(http.MethodPut)

	// Uploads
	api.HandleFunc("/uploads/{folder}", s.upload).Methods(http.MethodPost)

	// Session
	api.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.signIn).Methods(http.MethodPost)
	api.HandleFunc("/session", s.signOut).Methods(http.MethodDelete)
	api.HandleFunc("/session/stream", s.sessionStream).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
