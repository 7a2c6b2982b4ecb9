package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"mibarrio-backend/internal/logger"
)

const firebaseService = "firebase-auth"

// AppFactory builds a new, independent Firebase app instance
type AppFactory func(ctx context.Context) (*firebase.App, error)

type FirebaseProvider struct {
	client *auth.Client
	newApp AppFactory
}

// NewFirebaseProvider uses client for token verification and account deletion, and newApp to build
// a fresh app for each provisioning context.
func NewFirebaseProvider(client *auth.Client, newApp AppFactory) *FirebaseProvider {
	return &FirebaseProvider{client: client, newApp: newApp}
}

func (p *FirebaseProvider) Begin(ctx context.Context) (Provisioning, error) {
	logger.ExternalServiceCall(firebaseService, "Begin")
	app, err := p.newApp(ctx)
	if err != nil {
		logger.ExternalServiceResult(firebaseService, "Begin", err)
		return nil, fmt.Errorf("create provisioning app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		logger.ExternalServiceResult(firebaseService, "Begin", err)
		return nil, fmt.Errorf("create provisioning auth client: %w", err)
	}
	return &firebaseProvisioning{client: client}, nil
}

func (p *FirebaseProvider) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	tok, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		logger.Debug("ID token rejected", "error", err)
		return nil, ErrInvalidToken
	}
	email, _ := tok.Claims["email"].(string)
	return &Token{UID: tok.UID, Email: email}, nil
}

func (p *FirebaseProvider) DeleteAccount(ctx context.Context, uid string) error {
	logger.ExternalServiceCall(firebaseService, "DeleteUser", "uid", uid)
	err := p.client.DeleteUser(ctx, uid)
	if auth.IsUserNotFound(err) {
		err = ErrAccountNotFound
	}
	logger.ExternalServiceResult(firebaseService, "DeleteUser", err, "uid", uid)
	return err
}

type firebaseProvisioning struct {
	client *auth.Client
}

func (p *firebaseProvisioning) CreateAccount(ctx context.Context, email, password, displayName string) (string, error) {
	if p.client == nil {
		return "", ErrProvisioningClosed
	}
	logger.ExternalServiceCall(firebaseService, "CreateUser", "email", email)
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)
	user, err := p.client.CreateUser(ctx, params)
	if auth.IsEmailAlreadyExists(err) {
		err = ErrEmailExists
	}
	logger.ExternalServiceResult(firebaseService, "CreateUser", err, "email", email)
	if err != nil {
		return "", err
	}
	return user.UID, nil
}

func (p *firebaseProvisioning) PasswordResetLink(ctx context.Context, email string) (string, error) {
	if p.client == nil {
		return "", ErrProvisioningClosed
	}
	logger.ExternalServiceCall(firebaseService, "PasswordResetLink", "email", email)
	link, err := p.client.PasswordResetLink(ctx, email)
	if auth.IsUserNotFound(err) {
		err = ErrAccountNotFound
	}
	logger.ExternalServiceResult(firebaseService, "PasswordResetLink", err, "email", email)
	return link, err
}

// Close drops the isolated client. The app holds no session state of its own.
func (p *firebaseProvisioning) Close() error {
	if p.client == nil {
		return ErrProvisioningClosed
	}
	p.client = nil
	return nil
}
