package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/service"
)

type certificateRequest struct {
	CertificateType string `json:"tipoCertificado"`
	Reason          string `json:"motivo"`
}

type reviewRequest struct {
	RequestID string                 `json:"requestId"`
	Payload   *domain.RequestPayload `json:"payload,omitempty"`
}

type broadcastRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Server) submitRegistration(w http.ResponseWriter, r *http.Request) {
	var payload domain.RequestPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	req, err := s.deps.Requests.SubmitRegistration(r.Context(), payload)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, req)
}

func (s *Server) submitCertificate(w http.ResponseWriter, r *http.Request) {
	var body certificateRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := s.deps.Requests.SubmitCertificate(r.Context(), principalFrom(r.Context()).UID, body.CertificateType, body.Reason)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, req)
}

func (s *Server) submitEnrollmentRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.Requests.SubmitEnrollment(r.Context(), principalFrom(r.Context()).UID, mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, req)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.RequestStatus(q.Get("estado"))
	kind := domain.RequestKind(q.Get("tipo"))
	if kind != "" && !kind.Valid() {
		WriteError(w, http.StatusBadRequest, "Tipo de solicitud inválido.")
		return
	}
	reqs, err := s.deps.Requests.ListRequests(r.Context(), status, kind)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, reqs)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.Requests.GetRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

// approveRequest is the privileged approve callable. The reviewer is the signed-in admin.
func (s *Server) approveRequest(w http.ResponseWriter, r *http.Request) {
	var body reviewRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		WriteError(w, http.StatusBadRequest, "Falta el identificador de la solicitud.")
		return
	}
	req, err := s.deps.Requests.Approve(r.Context(), body.RequestID, body.Payload, principalFrom(r.Context()).UID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, approvedMessage(req.Kind))
}

func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var body reviewRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		WriteError(w, http.StatusBadRequest, "Falta el identificador de la solicitud.")
		return
	}
	if err := s.deps.Requests.Reject(r.Context(), body.RequestID, principalFrom(r.Context()).UID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Solicitud rechazada.")
}

func (s *Server) sendBroadcastEmail(w http.ResponseWriter, r *http.Request) {
	var body broadcastRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := s.deps.Broadcast.SendBroadcastEmail(r.Context(), body.Subject, body.Body)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var body service.NewUser
	if !decodeJSON(w, r, &body) {
		return
	}
	user, err := s.deps.Users.CreateUser(r.Context(), body)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteOK(w, "Usuario creado: "+user.Email)
}

func approvedMessage(kind domain.RequestKind) string {
	switch kind {
	case domain.RequestKindRegistration:
		return "Solicitud aprobada. Se envió el email para definir la contraseña."
	case domain.RequestKindActivityEnrollment:
		return "Solicitud aprobada. El vecino quedó inscripto en la actividad."
	case domain.RequestKindCertificate:
		return "Solicitud aprobada. El certificado está disponible."
	}
	return "Solicitud aprobada."
}
