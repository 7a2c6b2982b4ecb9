package domain

import "time"

type RequestKind string

const (
	RequestKindRegistration       RequestKind = "registration"
	RequestKindActivityEnrollment RequestKind = "activity-enrollment"
	RequestKindCertificate        RequestKind = "certificate"
)

func (k RequestKind) Valid() bool {
	switch k {
	case RequestKindRegistration, RequestKindActivityEnrollment, RequestKindCertificate:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// RequestPayload carries the kind-specific fields of a request. Only the fields of
// the request's kind are set.
type RequestPayload struct {
	// registration
	Name       string `json:"nombre,omitempty" firestore:"nombre,omitempty"`
	Email      string `json:"email,omitempty" firestore:"email,omitempty"`
	NationalID string `json:"dni,omitempty" firestore:"dni,omitempty"`
	Address    string `json:"direccion,omitempty" firestore:"direccion,omitempty"`
	Role       Role   `json:"role,omitempty" firestore:"role,omitempty"`

	// activity-enrollment
	ActivityID string `json:"actividadId,omitempty" firestore:"actividadId,omitempty"`
	UserID     string `json:"userId,omitempty" firestore:"userId,omitempty"`

	// certificate
	CertificateType string `json:"tipoCertificado,omitempty" firestore:"tipoCertificado,omitempty"`
	Reason          string `json:"motivo,omitempty" firestore:"motivo,omitempty"`
	CertificateURL  string `json:"certificadoUrl,omitempty" firestore:"certificadoUrl,omitempty"`
}

// Merge returns p with every non-empty field of override applied on top.
func (p RequestPayload) Merge(override *RequestPayload) RequestPayload {
	if override == nil {
		return p
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Name, override.Name)
	set(&p.Email, override.Email)
	set(&p.NationalID, override.NationalID)
	set(&p.Address, override.Address)
	if override.Role != "" {
		p.Role = override.Role
	}
	set(&p.ActivityID, override.ActivityID)
	set(&p.UserID, override.UserID)
	set(&p.CertificateType, override.CertificateType)
	set(&p.Reason, override.Reason)
	set(&p.CertificateURL, override.CertificateURL)
	return p
}

// ApprovalProgress records which registration approval steps completed, so an
// interrupted approval can be finished later.
type ApprovalProgress struct {
	AccountUID     string    `json:"cuentaUid,omitempty" firestore:"cuentaUid,omitempty"`
	ProfileWritten bool      `json:"perfilCreado" firestore:"perfilCreado"`
	ResetLinkSent  bool      `json:"resetEnviado" firestore:"resetEnviado"`
	UpdatedAt      time.Time `json:"actualizado" firestore:"actualizado"`
}

type Request struct {
	ID          string            `json:"id" firestore:"-"`
	Kind        RequestKind       `json:"tipo" firestore:"tipo"`
	Status      RequestStatus     `json:"estado" firestore:"estado"`
	SubmittedAt time.Time         `json:"fechaSolicitud" firestore:"fechaSolicitud"`
	ReviewedBy  string            `json:"revisadoPor,omitempty" firestore:"revisadoPor,omitempty"`
	ReviewedAt  *time.Time        `json:"fechaRevision,omitempty" firestore:"fechaRevision,omitempty"`
	Payload     RequestPayload    `json:"datos" firestore:"datos"`
	Progress    *ApprovalProgress `json:"progreso,omitempty" firestore:"progreso,omitempty"`
}

func (r *Request) IsPending() bool {
	return r.Status == RequestStatusPending
}
