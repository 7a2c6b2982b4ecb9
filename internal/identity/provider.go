// Package identity wraps the account directory: account creation, reset links and ID token verification.
package identity

import (
	"context"
	"errors"
)

var (
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidToken       = errors.New("invalid or expired ID token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrProvisioningClosed = errors.New("provisioning context already closed")
)

// Token is a verified ID token
type Token struct {
	UID   string
	Email string
}

// Provisioning is an isolated identity client used to create accounts on behalf of another user.
// It never touches the caller's session and must always be closed.
type Provisioning interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (string, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
	Close() error
}

type Provider interface {
	// Begin opens an isolated provisioning context
	Begin(ctx context.Context) (Provisioning, error)
	VerifyIDToken(ctx context.Context, idToken string) (*Token, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// PasswordAuthenticator is implemented by providers that handle sign-in themselves.
// Hosted providers do this client side.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (string, error)
	ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error
}
