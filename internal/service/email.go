package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
)

// message is a provider-neutral outbound email
type message struct {
	to      []string
	bcc     []string
	subject string
	html    string
}

var kindLabels = map[domain.RequestKind]string{
	domain.RequestKindRegistration:       "registro",
	domain.RequestKindActivityEnrollment: "inscripción a actividad",
	domain.RequestKindCertificate:        "certificado",
}

var statusLabels = map[domain.RequestStatus]string{
	domain.RequestStatusPending:  "pendiente",
	domain.RequestStatusApproved: "aprobada",
	domain.RequestStatusRejected: "rechazada",
}

// broadcastMessage addresses from and blind-copies bcc. Addresses are compared case-insensitively;
// duplicates and the sender itself are left out of the copy list.
func broadcastMessage(from string, bcc []string, subject, htmlBody string) message {
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(from)): {}}
	copies := make([]string, 0, len(bcc))
	for _, addr := range bcc {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		copies = append(copies, strings.TrimSpace(addr))
	}
	return message{to: []string{from}, bcc: copies, subject: subject, html: htmlBody}
}

func passwordSetupMessage(email, name, resetLink string) message {
	body := fmt.Sprintf(`<p>Hola %s,</p>
<p>Tu solicitud de registro en Mi Barrio Digital fue aprobada.</p>
<p>Para elegir tu contraseña ingresá al siguiente enlace:</p>
<p><a href="%s">Crear mi contraseña</a></p>
<p>Saludos,<br>La comisión vecinal</p>`, html.EscapeString(name), html.EscapeString(resetLink))
	return message{to: []string{email}, subject: "Bienvenido a Mi Barrio Digital", html: body}
}

func statusMessage(email, name string, kind domain.RequestKind, status domain.RequestStatus) message {
	body := fmt.Sprintf(`<p>Hola %s,</p>
<p>Tu solicitud de %s fue %s.</p>
<p>Saludos,<br>La comisión vecinal</p>`, html.EscapeString(name), kindLabels[kind], statusLabels[status])
	return message{
		to:      []string{email},
		subject: fmt.Sprintf("Tu solicitud de %s fue %s", kindLabels[kind], statusLabels[status]),
		html:    body,
	}
}

type emailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	send     func(m *gomail.Message) error
}

// NewEmailService sends mail through an SMTP relay with gomail
func NewEmailService(host string, port int, username, password, from string) EmailService {
	s := &emailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
	s.send = func(m *gomail.Message) error {
		return gomail.NewDialer(s.host, s.port, s.username, s.password).DialAndSend(m)
	}
	return s
}

func (s *emailService) deliver(msg message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	if len(msg.to) > 0 {
		m.SetHeader("To", msg.to...)
	}
	if len(msg.bcc) > 0 {
		m.SetHeader("Bcc", msg.bcc...)
	}
	m.SetHeader("Subject", msg.subject)
	m.SetBody("text/html", msg.html)

	logger.ExternalServiceCall("smtp", "DialAndSend", "subject", msg.subject, "to", len(msg.to), "bcc", len(msg.bcc))
	err := s.send(m)
	logger.ExternalServiceResult("smtp", "DialAndSend", err, "subject", msg.subject)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

func (s *emailService) SendPasswordSetup(ctx context.Context, email, name, resetLink string) error {
	return s.deliver(passwordSetupMessage(email, name, resetLink))
}

// SendBroadcast addresses the message to the sender and blind-copies every recipient
func (s *emailService) SendBroadcast(ctx context.Context, bcc []string, subject, htmlBody string) error {
	return s.deliver(broadcastMessage(s.from, bcc, subject, htmlBody))
}

func (s *emailService) SendRequestStatusNotification(ctx context.Context, email, name string, kind domain.RequestKind, status domain.RequestStatus) error {
	return s.deliver(statusMessage(email, name, kind, status))
}
