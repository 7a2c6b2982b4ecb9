package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"mibarrio-backend/internal/domain"
)

func TestEmailService_Broadcast(t *testing.T) {
	var sent *gomail.Message
	svc := NewEmailService("smtp.example.com", 587, "user", "pass", "comision@mibarrio.test").(*emailService)
	svc.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	err := svc.SendBroadcast(context.Background(), []string{"a@example.com", "b@example.com"}, "Asamblea", "<p>Jueves 19 hs</p>")
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"comision@mibarrio.test"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sent.GetHeader("Bcc"))
	assert.Equal(t, []string{"Asamblea"}, sent.GetHeader("Subject"))
}

func TestBroadcastMessage(t *testing.T) {
	msg := broadcastMessage("comision@mibarrio.test",
		[]string{"ana@example.com", "ANA@example.com ", "", "comision@MIBARRIO.test", "beto@example.com"}, "Asamblea", "<p>Jueves</p>")
	assert.Equal(t, []string{"comision@mibarrio.test"}, msg.to)
	assert.Equal(t, []string{"ana@example.com", "beto@example.com"}, msg.bcc)
}

func TestEmailService_SendError(t *testing.T) {
	svc := NewEmailService("smtp.example.com", 587, "", "", "comision@mibarrio.test").(*emailService)
	svc.send = func(m *gomail.Message) error { return errors.New("connection refused") }

	err := svc.SendPasswordSetup(context.Background(), "ana@example.com", "Ana", "http://localhost/reset?oobCode=x")
	assert.ErrorContains(t, err, "connection refused")
}

func TestStatusMessage(t *testing.T) {
	msg := statusMessage("ana@example.com", "<Ana>", domain.RequestKindCertificate, domain.RequestStatusApproved)
	assert.Equal(t, []string{"ana@example.com"}, msg.to)
	assert.Equal(t, "Tu solicitud de certificado fue aprobada", msg.subject)
	assert.Contains(t, msg.html, "&lt;Ana&gt;")
}

func TestSendGridEmailService(t *testing.T) {
	var sent *mail.SGMailV3
	svc := NewSendGridEmailService("key", "comision@mibarrio.test", "Mi Barrio").(*sendGridEmailService)
	svc.send = func(m *mail.SGMailV3) (*rest.Response, error) {
		sent = m
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	err := svc.SendBroadcast(context.Background(), []string{"a@example.com", "Comision@MiBarrio.test", "b@example.com", "A@example.com"}, "Asamblea", "<p>Jueves</p>")
	require.NoError(t, err)
	require.Len(t, sent.Personalizations, 1)
	p := sent.Personalizations[0]
	require.Len(t, p.To, 1)
	assert.Equal(t, "comision@mibarrio.test", p.To[0].Address)
	require.Len(t, p.BCC, 2)
	assert.Equal(t, "b@example.com", p.BCC[1].Address)
	assert.Equal(t, "Mi Barrio", sent.From.Name)

	svc.send = func(m *mail.SGMailV3) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
	}
	err = svc.SendRequestStatusNotification(context.Background(), "ana@example.com", "Ana", domain.RequestKindRegistration, domain.RequestStatusRejected)
	assert.ErrorContains(t, err, "status 401")
}
