package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/service"
)

const maxJSONBody = 1 << 20

var bodyValidator = validator.New(validator.WithRequiredStructEnabled())

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// WriteError answers with the {success:false, message} envelope
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, service.CallableResult{Success: false, Message: message})
}

// WriteServiceError maps a service error to its status; messages are already safe to show
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, service.StatusOf(err), err.Error())
}

func WriteOK(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, service.CallableResult{Success: true, Message: message})
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "El cuerpo de la solicitud no es válido.")
		return false
	}
	return true
}

// decodeValid decodes dst and checks its validate tags, answering 400 with message on failure
func decodeValid(w http.ResponseWriter, r *http.Request, dst any, message string) bool {
	if !decodeJSON(w, r, dst) {
		return false
	}
	if err := bodyValidator.Struct(dst); err != nil {
		logger.Debug("Request body rejected", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusBadRequest, message)
		return false
	}
	return true
}
