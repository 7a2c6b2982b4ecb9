package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
)

type sendGridEmailService struct {
	fromEmail string
	fromName  string
	send      func(m *mail.SGMailV3) (*rest.Response, error)
}

// NewSendGridEmailService sends mail through the SendGrid v3 API
func NewSendGridEmailService(apiKey, fromEmail, fromName string) EmailService {
	client := sendgrid.NewSendClient(apiKey)
	return &sendGridEmailService{
		fromEmail: fromEmail,
		fromName:  fromName,
		send:      client.Send,
	}
}

func (s *sendGridEmailService) deliver(ctx context.Context, msg message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)

	p := mail.NewPersonalization()
	for _, to := range msg.to {
		p.AddTos(mail.NewEmail("", to))
	}
	for _, bcc := range msg.bcc {
		p.AddBCCs(mail.NewEmail("", bcc))
	}

	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.subject
	m.AddContent(mail.NewContent("text/html", msg.html))
	m.AddPersonalizations(p)

	logger.ExternalServiceCall("sendgrid", "Send", "subject", msg.subject, "to", len(msg.to), "bcc", len(msg.bcc))
	response, err := s.send(m)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "subject", msg.subject)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *sendGridEmailService) SendPasswordSetup(ctx context.Context, email, name, resetLink string) error {
	return s.deliver(ctx, passwordSetupMessage(email, name, resetLink))
}

func (s *sendGridEmailService) SendBroadcast(ctx context.Context, bcc []string, subject, htmlBody string) error {
	return s.deliver(ctx, broadcastMessage(s.fromEmail, bcc, subject, htmlBody))
}

func (s *sendGridEmailService) SendRequestStatusNotification(ctx context.Context, email, name string, kind domain.RequestKind, status domain.RequestStatus) error {
	return s.deliver(ctx, statusMessage(email, name, kind, status))
}
