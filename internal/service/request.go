package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/identity"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/repository"
)

// ReconcilerID is recorded as reviewer on approvals finished by the reconciliation job
const ReconcilerID = "system:reconciler"

type requestService struct {
	reqRepo      repository.RequestRepository
	userRepo     repository.UserRepository
	activityRepo repository.ActivityRepository
	idp          identity.Provider
	emailSvc     EmailService
	certs        *CertificateIssuer
	strict       bool
	now          func() time.Time
}

// NewRequestService builds the request lifecycle. In strict mode status transitions are
// compare-and-set, enrollment approval is one transaction and registration steps are recorded.
func NewRequestService(
	reqRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	activityRepo repository.ActivityRepository,
	idp identity.Provider,
	emailSvc EmailService,
	certs *CertificateIssuer,
	strict bool,
) RequestService {
	return &requestService{
		reqRepo:      reqRepo,
		userRepo:     userRepo,
		activityRepo: activityRepo,
		idp:          idp,
		emailSvc:     emailSvc,
		certs:        certs,
		strict:       strict,
		now:          time.Now,
	}
}

func normalizeRegistration(p domain.RequestPayload) domain.RequestPayload {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.NationalID = strings.TrimSpace(p.NationalID)
	p.Address = strings.TrimSpace(p.Address)
	return p
}

func (s *requestService) create(ctx context.Context, kind domain.RequestKind, payload domain.RequestPayload) (*domain.Request, error) {
	req := &domain.Request{
		Kind:        kind,
		Status:      domain.RequestStatusPending,
		SubmittedAt: s.now(),
		Payload:     payload,
	}
	if err := s.reqRepo.Create(ctx, req); err != nil {
		return nil, failure("RequestService.create", err, "No se pudo registrar la solicitud.", "kind", kind)
	}
	metrics.RequestsSubmitted.WithLabelValues(string(kind)).Inc()
	logger.Info("Request submitted", "requestID", req.ID, "kind", kind)
	return req, nil
}

func (s *requestService) SubmitRegistration(ctx context.Context, payload domain.RequestPayload) (*domain.Request, error) {
	logger.EnterMethod("RequestService.SubmitRegistration")
	payload = normalizeRegistration(payload)
	input := registrationInput{Name: payload.Name, Email: payload.Email}
	if err := checkInput(input, "Completá tu nombre y un email válido.", nil); err != nil {
		return nil, err
	}
	// Applicants cannot choose their role; an admin may set it when approving.
	payload.Role = ""
	payload.ActivityID, payload.UserID = "", ""
	payload.CertificateType, payload.Reason, payload.CertificateURL = "", "", ""

	req, err := s.create(ctx, domain.RequestKindRegistration, payload)
	if err != nil {
		return nil, err
	}
	logger.ExitMethod("RequestService.SubmitRegistration", "requestID", req.ID)
	return req, nil
}

func (s *requestService) SubmitCertificate(ctx context.Context, userID, certificateType, reason string) (*domain.Request, error) {
	logger.EnterMethod("RequestService.SubmitCertificate", "userID", userID)
	certificateType = strings.TrimSpace(certificateType)
	input := certificateInput{UserID: userID, CertificateType: certificateType}
	if err := checkInput(input, "Indicá el tipo de certificado.", nil); err != nil {
		return nil, err
	}

	payload := domain.RequestPayload{
		UserID:          userID,
		CertificateType: certificateType,
		Reason:          strings.TrimSpace(reason),
	}
	if user, err := s.userRepo.GetByID(ctx, userID); err == nil {
		payload.Name, payload.Email = user.Name, user.Email
	}

	req, err := s.create(ctx, domain.RequestKindCertificate, payload)
	if err != nil {
		return nil, err
	}
	logger.ExitMethod("RequestService.SubmitCertificate", "requestID", req.ID)
	return req, nil
}

func (s *requestService) SubmitEnrollment(ctx context.Context, userID, activityID string) (*domain.Request, error) {
	logger.EnterMethod("RequestService.SubmitEnrollment", "userID", userID, "activityID", activityID)
	if err := checkInput(enrollmentInput{ActivityID: activityID, UserID: userID}, "Falta la actividad o el usuario.", nil); err != nil {
		return nil, err
	}

	activity, err := s.activityRepo.GetByID(ctx, activityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("La actividad no existe.")
	}
	if err != nil {
		return nil, failure("RequestService.SubmitEnrollment", err, "No se pudo cargar la actividad.")
	}
	if activity.Status != domain.ActivityActive {
		return nil, ErrConflict("La actividad no está abierta a inscripciones.")
	}

	payload := domain.RequestPayload{ActivityID: activityID, UserID: userID}
	if user, err := s.userRepo.GetByID(ctx, userID); err == nil {
		payload.Name, payload.Email = user.Name, user.Email
	}

	req, err := s.create(ctx, domain.RequestKindActivityEnrollment, payload)
	if err != nil {
		return nil, err
	}
	logger.ExitMethod("RequestService.SubmitEnrollment", "requestID", req.ID)
	return req, nil
}

func (s *requestService) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	req, err := s.reqRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("La solicitud no existe.")
	}
	if err != nil {
		return nil, failure("RequestService.GetRequest", err, "No se pudo cargar la solicitud.", "requestID", id)
	}
	return req, nil
}

func (s *requestService) ListRequests(ctx context.Context, status domain.RequestStatus, kind domain.RequestKind) ([]domain.Request, error) {
	reqs, err := s.reqRepo.List(ctx, status, kind)
	if err != nil {
		return nil, failure("RequestService.ListRequests", err, "No se pudieron cargar las solicitudes.")
	}
	return reqs, nil
}

func (s *requestService) Approve(ctx context.Context, requestID string, payload *domain.RequestPayload, reviewerID string) (*domain.Request, error) {
	logger.EnterMethod("RequestService.Approve", "requestID", requestID, "reviewer", reviewerID)
	if requestID == "" {
		return nil, ErrBadRequest("Falta el identificador de la solicitud.")
	}
	if reviewerID == "" {
		return nil, ErrUnauthorized("Se requiere un revisor autenticado.")
	}

	// 1. Load the request
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if s.strict && !req.IsPending() {
		return nil, ErrAlreadyReviewed
	}

	// 2. Caller payload overrides the stored one
	data := req.Payload.Merge(payload)
	review := repository.Review{
		RequestID:  req.ID,
		Status:     domain.RequestStatusApproved,
		ReviewedBy: reviewerID,
		ReviewedAt: s.now(),
	}

	// 3. Kind-specific side effects, request marked approved last
	switch req.Kind {
	case domain.RequestKindRegistration:
		err = s.approveRegistration(ctx, req, data, review)
	case domain.RequestKindActivityEnrollment:
		err = s.approveEnrollment(ctx, data, review)
	case domain.RequestKindCertificate:
		data, err = s.approveCertificate(ctx, req, data, review)
	default:
		err = ErrBadRequest("Tipo de solicitud desconocido.")
	}
	if err != nil {
		metrics.ApprovalFailures.WithLabelValues(string(req.Kind)).Inc()
		return nil, err
	}

	metrics.RequestsReviewed.WithLabelValues(string(req.Kind), string(domain.RequestStatusApproved)).Inc()
	req.Status = review.Status
	req.ReviewedBy = review.ReviewedBy
	req.ReviewedAt = &review.ReviewedAt
	req.Payload = data
	logger.ExitMethod("RequestService.Approve", "requestID", req.ID, "kind", req.Kind)
	return req, nil
}

func (s *requestService) markReviewed(ctx context.Context, review repository.Review) error {
	if !s.strict {
		return s.reqRepo.MarkReviewed(ctx, review)
	}
	err := s.reqRepo.MarkReviewedIfPending(ctx, review)
	if errors.Is(err, repository.ErrNotPending) {
		return ErrAlreadyReviewed
	}
	return err
}

// saveProgress stores the completed steps with the payload they used, so a resumed approval
// keeps the reviewer's overrides
func (s *requestService) saveProgress(ctx context.Context, requestID string, data domain.RequestPayload, progress *domain.ApprovalProgress) error {
	if !s.strict {
		return nil
	}
	progress.UpdatedAt = s.now()
	return s.reqRepo.SaveProgress(ctx, requestID, data, progress)
}

func temporaryPassword() string {
	return uuid.New().String()
}

func (s *requestService) approveRegistration(ctx context.Context, req *domain.Request, data domain.RequestPayload, review repository.Review) error {
	const method = "RequestService.approveRegistration"
	data = normalizeRegistration(data)
	input := registrationInput{Name: data.Name, Email: data.Email, Role: data.Role}
	if err := checkInput(input, "La solicitud debe incluir nombre y un email válido.", map[string]string{"Role": "Rol inválido."}); err != nil {
		return err
	}
	role := data.Role
	if role == "" {
		role = domain.RoleResident
	}

	// Provision through an isolated identity context, always disposed
	prov, err := s.idp.Begin(ctx)
	if err != nil {
		return failure(method, err, "No se pudo iniciar el alta del vecino.", "requestID", req.ID)
	}
	defer func() {
		if cerr := prov.Close(); cerr != nil {
			logger.Warn("Failed to close provisioning context", "requestID", req.ID, "error", cerr)
		}
	}()

	progress := &domain.ApprovalProgress{}
	if s.strict && req.Progress != nil {
		progress = req.Progress
	}

	// 1. Account
	uid := progress.AccountUID
	if uid == "" {
		uid, err = prov.CreateAccount(ctx, data.Email, temporaryPassword(), data.Name)
		if errors.Is(err, identity.ErrEmailExists) {
			return ErrEmailInUse
		}
		if err != nil {
			return failure(method, err, "No se pudo crear la cuenta del vecino.", "requestID", req.ID)
		}
		progress.AccountUID = uid
		if err := s.saveProgress(ctx, req.ID, data, progress); err != nil {
			return failure(method, err, "No se pudo registrar el avance de la aprobación.", "requestID", req.ID, "uid", uid)
		}
	}

	// 2. Profile keyed by the new account id
	if !progress.ProfileWritten {
		profile := &domain.User{
			ID:               uid,
			Name:             data.Name,
			Email:            data.Email,
			NationalID:       data.NationalID,
			Address:          data.Address,
			Role:             role,
			MembershipStatus: domain.MembershipActive,
			CreatedAt:        s.now(),
		}
		if err := s.userRepo.Create(ctx, profile); err != nil {
			return failure(method, err, "No se pudo crear el perfil del vecino.", "requestID", req.ID, "uid", uid)
		}
		progress.ProfileWritten = true
		if err := s.saveProgress(ctx, req.ID, data, progress); err != nil {
			return failure(method, err, "No se pudo registrar el avance de la aprobación.", "requestID", req.ID, "uid", uid)
		}
	}

	// 3. Reset link so the applicant picks a real password
	if !progress.ResetLinkSent {
		link, err := prov.PasswordResetLink(ctx, data.Email)
		if err != nil {
			return failure(method, err, "No se pudo generar el enlace para crear la contraseña.", "requestID", req.ID, "uid", uid)
		}
		if err := s.emailSvc.SendPasswordSetup(ctx, data.Email, data.Name, link); err != nil {
			return failure(method, err, "No se pudo enviar el email de bienvenida.", "requestID", req.ID, "uid", uid)
		}
		progress.ResetLinkSent = true
		if err := s.saveProgress(ctx, req.ID, data, progress); err != nil {
			return failure(method, err, "No se pudo registrar el avance de la aprobación.", "requestID", req.ID, "uid", uid)
		}
	}

	// 4. Approved marker last
	if err := s.markReviewed(ctx, review); err != nil {
		return failure(method, err, "No se pudo marcar la solicitud como aprobada.", "requestID", req.ID, "uid", uid)
	}
	logger.Info("Registration approved", "requestID", req.ID, "uid", uid, "reviewer", review.ReviewedBy)
	return nil
}

func (s *requestService) approveEnrollment(ctx context.Context, data domain.RequestPayload, review repository.Review) error {
	const method = "RequestService.approveEnrollment"
	if err := checkInput(enrollmentInput{ActivityID: data.ActivityID, UserID: data.UserID}, "La solicitud no indica actividad o usuario.", nil); err != nil {
		return err
	}

	// 1. Capacity precondition
	activity, err := s.activityRepo.GetByID(ctx, data.ActivityID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("La actividad no existe.")
	}
	if err != nil {
		return failure(method, err, "No se pudo cargar la actividad.", "activityID", data.ActivityID)
	}
	if activity.Remaining <= 0 {
		metrics.Enrollments.WithLabelValues("capacity_exhausted").Inc()
		return ErrCapacityExhausted
	}

	enrollment := newEnrollment(ctx, s.userRepo, data.ActivityID, data.UserID, data.Name, data.Email, s.now())

	// 2. Enrollment, decrement and approval
	if s.strict {
		err := s.activityRepo.EnrollAtomic(ctx, enrollment, &review)
		switch {
		case errors.Is(err, repository.ErrCapacityExhausted):
			metrics.Enrollments.WithLabelValues("capacity_exhausted").Inc()
			return ErrCapacityExhausted
		case errors.Is(err, repository.ErrNotPending):
			return ErrAlreadyReviewed
		case err != nil:
			return failure(method, err, "No se pudo inscribir al vecino.", "requestID", review.RequestID)
		}
	} else {
		if err := s.activityRepo.AddEnrollment(ctx, enrollment); err != nil {
			return failure(method, err, "No se pudo inscribir al vecino.", "requestID", review.RequestID)
		}
		if err := s.activityRepo.DecrementRemaining(ctx, data.ActivityID); err != nil {
			return failure(method, err, "No se pudo actualizar el cupo de la actividad.", "requestID", review.RequestID)
		}
		if err := s.markReviewed(ctx, review); err != nil {
			return failure(method, err, "No se pudo marcar la solicitud como aprobada.", "requestID", review.RequestID)
		}
	}
	metrics.Enrollments.WithLabelValues("ok").Inc()

	s.notify(ctx, enrollment.Email, enrollment.Name, domain.RequestKindActivityEnrollment, domain.RequestStatusApproved)
	return nil
}

func (s *requestService) approveCertificate(ctx context.Context, req *domain.Request, data domain.RequestPayload, review repository.Review) (domain.RequestPayload, error) {
	const method = "RequestService.approveCertificate"
	if data.UserID == "" {
		return data, ErrBadRequest("La solicitud no indica el vecino.")
	}

	// 1. Verification QR
	url, err := s.certs.Issue(ctx, req.ID)
	if err != nil {
		return data, failure(method, err, "No se pudo generar el certificado.", "requestID", req.ID)
	}
	data.CertificateURL = url

	// 2. Store the URL with the request
	if err := s.reqRepo.UpdatePayload(ctx, req.ID, data); err != nil {
		return data, failure(method, err, "No se pudo guardar el certificado.", "requestID", req.ID)
	}

	// 3. Approved marker
	if err := s.markReviewed(ctx, review); err != nil {
		return data, failure(method, err, "No se pudo marcar la solicitud como aprobada.", "requestID", req.ID)
	}

	s.notify(ctx, data.Email, data.Name, domain.RequestKindCertificate, domain.RequestStatusApproved)
	return data, nil
}

// notify is best effort: the approval already happened
func (s *requestService) notify(ctx context.Context, email, name string, kind domain.RequestKind, status domain.RequestStatus) {
	if email == "" {
		return
	}
	if err := s.emailSvc.SendRequestStatusNotification(ctx, email, name, kind, status); err != nil {
		logger.Warn("Failed to send request status notification", "email", email, "kind", kind, "error", err)
	}
}

func (s *requestService) Reject(ctx context.Context, requestID, reviewerID string) error {
	logger.EnterMethod("RequestService.Reject", "requestID", requestID, "reviewer", reviewerID)
	if requestID == "" {
		return ErrBadRequest("Falta el identificador de la solicitud.")
	}
	if reviewerID == "" {
		return ErrUnauthorized("Se requiere un revisor autenticado.")
	}

	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	review := repository.Review{
		RequestID:  req.ID,
		Status:     domain.RequestStatusRejected,
		ReviewedBy: reviewerID,
		ReviewedAt: s.now(),
	}
	if err := s.markReviewed(ctx, review); err != nil {
		return failure("RequestService.Reject", err, "No se pudo rechazar la solicitud.", "requestID", req.ID)
	}

	metrics.RequestsReviewed.WithLabelValues(string(req.Kind), string(domain.RequestStatusRejected)).Inc()
	logger.ExitMethod("RequestService.Reject", "requestID", req.ID)
	return nil
}

func (s *requestService) ReconcileRegistrations(ctx context.Context, grace time.Duration) (int, error) {
	if !s.strict {
		return 0, nil
	}
	pending, err := s.reqRepo.List(ctx, domain.RequestStatusPending, domain.RequestKindRegistration)
	if err != nil {
		return 0, failure("RequestService.ReconcileRegistrations", err, "No se pudieron cargar las solicitudes.")
	}

	cutoff := s.now().Add(-grace)
	finished := 0
	for _, req := range pending {
		if req.Progress == nil || req.Progress.AccountUID == "" || req.Progress.UpdatedAt.After(cutoff) {
			continue
		}
		if _, err := s.Approve(ctx, req.ID, nil, ReconcilerID); err != nil {
			logger.Warn("Failed to finish interrupted registration", "requestID", req.ID, "error", err)
			continue
		}
		finished++
	}
	return finished, nil
}
