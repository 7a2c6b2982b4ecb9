package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkInput runs the validate tags of input. The first failing field is reported with its
// message from messages (keyed by struct field name), or with fallback.
func checkInput(input any, fallback string, messages map[string]string) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		logger.Debug("Input rejected", "field", fe.Namespace(), "rule", fe.Tag())
	}
	if msg, ok := messages[fieldErrs[0].StructField()]; ok {
		return ErrBadRequest(msg)
	}
	return ErrBadRequest(fallback)
}

// checkVar validates a single value against tag
func checkVar(value any, tag, message string) error {
	if err := validate.Var(value, tag); err != nil {
		return ErrBadRequest(message)
	}
	return nil
}

type registrationInput struct {
	Name  string      `validate:"required,max=200"`
	Email string      `validate:"required,email"`
	Role  domain.Role `validate:"omitempty,oneof=admin resident"`
}

type enrollmentInput struct {
	ActivityID string `validate:"required"`
	UserID     string `validate:"required"`
}

type certificateInput struct {
	UserID          string `validate:"required"`
	CertificateType string `validate:"required,max=100"`
}
