package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/security"
)

const accountsCollection = "_accounts"

type localAccount struct {
	UID          string    `json:"uid" firestore:"uid"`
	Email        string    `json:"email" firestore:"email"`
	DisplayName  string    `json:"displayName" firestore:"displayName"`
	PasswordHash string    `json:"passwordHash" firestore:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// LocalProvider keeps accounts in the document store and issues HS256 ID tokens.
// It serves development and tests where no hosted identity service is available.
type LocalProvider struct {
	docs         docstore.Store
	tokens       security.TokenManager
	resetBaseURL string
}

func NewLocalProvider(docs docstore.Store, tokens security.TokenManager, resetBaseURL string) *LocalProvider {
	return &LocalProvider{docs: docs, tokens: tokens, resetBaseURL: resetBaseURL}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) findByEmail(ctx context.Context, email string) (*localAccount, error) {
	snaps, err := p.docs.Query(ctx, accountsCollection, docstore.Query{Limit: 1}.
		Where("email", docstore.OpEqual, normalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, ErrAccountNotFound
	}
	acc := &localAccount{}
	if err := snaps[0].DataTo(acc); err != nil {
		return nil, err
	}
	acc.UID = snaps[0].ID()
	return acc, nil
}

func (p *LocalProvider) createAccount(ctx context.Context, email, password, displayName string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	email = normalizeEmail(email)

	var uid string
	err = p.docs.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		existing, err := tx.Query(accountsCollection, docstore.Query{Limit: 1}.Where("email", docstore.OpEqual, email))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrEmailExists
		}
		uid, err = tx.Add(accountsCollection, &localAccount{
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: string(hash),
			CreatedAt:    time.Now(),
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return uid, nil
}

func (p *LocalProvider) resetLink(ctx context.Context, email string) (string, error) {
	acc, err := p.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token, err := p.tokens.GenerateResetToken(acc.UID, acc.Email)
	if err != nil {
		return "", err
	}
	return p.resetBaseURL + "?oobCode=" + url.QueryEscape(token), nil
}

func (p *LocalProvider) Begin(ctx context.Context) (Provisioning, error) {
	return &localProvisioning{provider: p}, nil
}

func (p *LocalProvider) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	claims, err := p.tokens.ValidateToken(idToken, security.TokenTypeID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := p.docs.Get(ctx, accountsCollection, claims.UID, &localAccount{}); err != nil {
		return nil, ErrInvalidToken
	}
	return &Token{UID: claims.UID, Email: claims.Email}, nil
}

func (p *LocalProvider) DeleteAccount(ctx context.Context, uid string) error {
	err := p.docs.Delete(ctx, accountsCollection, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	acc, err := p.findByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return p.tokens.GenerateIDToken(acc.UID, acc.Email)
}

func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	claims, err := p.tokens.ValidateToken(resetToken, security.TokenTypeReset)
	if err != nil {
		return ErrInvalidToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = p.docs.Update(ctx, accountsCollection, claims.UID, docstore.Field{Path: "passwordHash", Value: string(hash)})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

type localProvisioning struct {
	mu       sync.Mutex
	provider *LocalProvider
}

func (p *localProvisioning) active() (*LocalProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider == nil {
		return nil, ErrProvisioningClosed
	}
	return p.provider, nil
}

func (p *localProvisioning) CreateAccount(ctx context.Context, email, password, displayName string) (string, error) {
	provider, err := p.active()
	if err != nil {
		return "", err
	}
	return provider.createAccount(ctx, email, password, displayName)
}

func (p *localProvisioning) PasswordResetLink(ctx context.Context, email string) (string, error) {
	provider, err := p.active()
	if err != nil {
		return "", err
	}
	return provider.resetLink(ctx, email)
}

func (p *localProvisioning) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider == nil {
		return ErrProvisioningClosed
	}
	p.provider = nil
	return nil
}
