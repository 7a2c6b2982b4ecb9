package service

import (
	"errors"
	"fmt"
	"net/http"

	"mibarrio-backend/internal/logger"
)

// ServiceError is an error the transport can surface to the caller as-is
type ServiceError struct {
	Status  int
	Message string
}

func (e ServiceError) Error() string {
	return e.Message
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Message: msg}
}

func ErrUnauthorized(msg string) error {
	return ServiceError{Status: http.StatusUnauthorized, Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: http.StatusForbidden, Message: msg}
}

func ErrNotFound(msg string) error {
	return ServiceError{Status: http.StatusNotFound, Message: msg}
}

func ErrConflict(msg string) error {
	return ServiceError{Status: http.StatusConflict, Message: msg}
}

var (
	ErrCapacityExhausted  = ServiceError{Status: http.StatusConflict, Message: "No quedan cupos disponibles para esta actividad."}
	ErrReservationOverlap = ServiceError{Status: http.StatusConflict, Message: "El espacio ya está reservado en ese horario."}
	ErrAlreadyReviewed    = ServiceError{Status: http.StatusConflict, Message: "La solicitud ya fue revisada."}
	ErrEmailInUse         = ServiceError{Status: http.StatusConflict, Message: "Ya existe una cuenta con ese email."}
)

// WrapError annotates a downstream failure
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// failure logs a downstream error and returns the single human-readable message shown to the caller.
// ServiceErrors pass through untouched.
func failure(method string, err error, userMsg string, args ...any) error {
	var se ServiceError
	if errors.As(err, &se) {
		return se
	}
	logger.ExitMethodWithError(method, err, args...)
	return &internalError{message: userMsg, cause: err}
}

// internalError keeps the cause for logs and errors.Is while exposing only the message
type internalError struct {
	message string
	cause   error
}

func (e *internalError) Error() string { return e.message }

func (e *internalError) Unwrap() error { return e.cause }

// StatusOf maps an error to the HTTP status the transport should use
func StatusOf(err error) int {
	var se ServiceError
	if errors.As(err, &se) {
		return se.Status
	}
	return http.StatusInternalServerError
}
