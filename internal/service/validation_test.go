package service

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"mibarrio-backend/internal/domain"
)

func TestCheckInput(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr string
	}{
		{"ValidRegistration", registrationInput{Name: "Ana", Email: "ana@example.com"}, ""},
		{"DisplayNameEmail", registrationInput{Name: "Ana", Email: "Ana <ana@example.com>"}, "fallback"},
		{"MissingName", registrationInput{Email: "ana@example.com"}, "fallback"},
		{"UnknownRole", registrationInput{Name: "Ana", Email: "ana@example.com", Role: "owner"}, "Rol inválido."},
		{"ReservationDate", &domain.Reservation{Date: "16/10/2026", StartTime: "10:00", EndTime: "11:00"}, "fecha"},
		{"ReservationTime", &domain.Reservation{Date: "2026-10-16", StartTime: "25:00", EndTime: "11:00"}, "fallback"},
		{"ValidReservation", &domain.Reservation{Date: "2026-10-16", StartTime: "10:00", EndTime: "11:00"}, ""},
	}
	messages := map[string]string{"Role": "Rol inválido.", "Date": "fecha"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkInput(tt.input, "fallback", messages)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			assert.Equal(t, http.StatusBadRequest, StatusOf(err))
		})
	}
}

func TestCheckVar(t *testing.T) {
	assert.NoError(t, checkVar("", "omitempty,datetime=2006-01-02", "bad"))
	assert.NoError(t, checkVar("2026-10-16", "omitempty,datetime=2006-01-02", "bad"))
	assert.EqualError(t, checkVar("mañana", "omitempty,datetime=2006-01-02", "bad"), "bad")
}
