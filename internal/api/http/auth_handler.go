package http

import (
	"errors"
	"net/http"
	"strings"

	"mibarrio-backend/internal/identity"
	"mibarrio-backend/internal/logger"
)

// authHandler serves password sign-in and reset confirmation for the self-hosted identity provider
type authHandler struct {
	auth identity.PasswordAuthenticator
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"min=6"`
}

func (h *authHandler) signIn(w http.ResponseWriter, r *http.Request) {
	var body signInRequest
	if !decodeValid(w, r, &body, "Ingresá email y contraseña.") {
		return
	}
	token, err := h.auth.SignIn(r.Context(), strings.TrimSpace(body.Email), body.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		WriteError(w, http.StatusUnauthorized, "Email o contraseña incorrectos.")
		return
	}
	if err != nil {
		logger.Error("Sign-in failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "No se pudo iniciar sesión.")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"idToken": token})
}

func (h *authHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !decodeValid(w, r, &body, "La contraseña debe tener al menos 6 caracteres.") {
		return
	}
	err := h.auth.ConfirmPasswordReset(r.Context(), body.Token, body.NewPassword)
	switch {
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrAccountNotFound):
		WriteError(w, http.StatusBadRequest, "El enlace expiró o no es válido.")
		return
	case err != nil:
		logger.Error("Password reset failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "No se pudo actualizar la contraseña.")
		return
	}
	WriteOK(w, "Contraseña actualizada.")
}
