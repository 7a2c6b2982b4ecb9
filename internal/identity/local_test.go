package identity

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/security"
)

func newLocal() *LocalProvider {
	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	return NewLocalProvider(docstore.NewMemoryStore(), tokens, "http://localhost:5173/reset")
}

func TestLocalProvider_ProvisionAndSignIn(t *testing.T) {
	ctx := context.Background()
	p := newLocal()

	prov, err := p.Begin(ctx)
	require.NoError(t, err)
	uid, err := prov.CreateAccount(ctx, "Ana@Example.com", "temporal-123", "Ana Perez")
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	_, err = prov.CreateAccount(ctx, "ana@example.com", "other", "Ana")
	assert.ErrorIs(t, err, ErrEmailExists)

	link, err := prov.PasswordResetLink(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost:5173/reset?oobCode="))
	require.NoError(t, prov.Close())

	_, err = prov.CreateAccount(ctx, "late@example.com", "x", "Late")
	assert.ErrorIs(t, err, ErrProvisioningClosed)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	require.NoError(t, p.ConfirmPasswordReset(ctx, parsed.Query().Get("oobCode"), "nueva-clave"))

	_, err = p.SignIn(ctx, "ana@example.com", "temporal-123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	idToken, err := p.SignIn(ctx, "ana@example.com", "nueva-clave")
	require.NoError(t, err)

	tok, err := p.VerifyIDToken(ctx, idToken)
	require.NoError(t, err)
	assert.Equal(t, uid, tok.UID)
	assert.Equal(t, "ana@example.com", tok.Email)
}

func TestLocalProvider_DeletedAccountTokenRejected(t *testing.T) {
	ctx := context.Background()
	p := newLocal()

	prov, err := p.Begin(ctx)
	require.NoError(t, err)
	defer prov.Close()
	uid, err := prov.CreateAccount(ctx, "b@example.com", "pw-123456", "B")
	require.NoError(t, err)

	idToken, err := p.SignIn(ctx, "b@example.com", "pw-123456")
	require.NoError(t, err)

	require.NoError(t, p.DeleteAccount(ctx, uid))
	_, err = p.VerifyIDToken(ctx, idToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, p.DeleteAccount(ctx, uid), ErrAccountNotFound)
}

func TestLocalProvider_ResetLinkUnknownEmail(t *testing.T) {
	ctx := context.Background()
	prov, err := newLocal().Begin(ctx)
	require.NoError(t, err)
	defer prov.Close()

	_, err = prov.PasswordResetLink(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
