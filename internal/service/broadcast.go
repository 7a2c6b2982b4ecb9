package service

import (
	"context"
	"fmt"
	"strings"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/repository"
)

const noRecipientsMessage = "No hay vecinos registrados con email."

type broadcastService struct {
	userRepo repository.UserRepository
	emailSvc EmailService
}

func NewBroadcastService(userRepo repository.UserRepository, emailSvc EmailService) BroadcastService {
	return &broadcastService{userRepo: userRepo, emailSvc: emailSvc}
}

// SendBroadcastEmail sends one message blind-copying every resident that has an email
func (s *broadcastService) SendBroadcastEmail(ctx context.Context, subject, body string) (*CallableResult, error) {
	const method = "BroadcastService.SendBroadcastEmail"
	logger.EnterMethod(method, "subject", subject)
	subject, body = strings.TrimSpace(subject), strings.TrimSpace(body)
	if subject == "" || body == "" {
		return nil, ErrBadRequest("El asunto y el mensaje son obligatorios.")
	}

	residents, err := s.userRepo.List(ctx, domain.RoleResident)
	if err != nil {
		return nil, failure(method, err, "No se pudo obtener la lista de vecinos.")
	}

	seen := make(map[string]struct{}, len(residents))
	recipients := make([]string, 0, len(residents))
	for _, u := range residents {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		recipients = append(recipients, email)
	}

	if len(recipients) == 0 {
		logger.Info("Broadcast skipped, no recipients", "subject", subject)
		return &CallableResult{Success: false, Message: noRecipientsMessage}, nil
	}

	if err := s.emailSvc.SendBroadcast(ctx, recipients, subject, body); err != nil {
		return nil, failure(method, err, "No se pudo enviar el email a los vecinos.", "recipients", len(recipients))
	}

	metrics.BroadcastRecipients.Add(float64(len(recipients)))
	logger.ExitMethod(method, "recipients", len(recipients))
	return &CallableResult{Success: true, Message: fmt.Sprintf("Email enviado a %d vecinos.", len(recipients))}, nil
}
