package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	token, err := m.GenerateIDToken("uid-1", "ana@example.com")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token, TokenTypeID)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.UID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestTokenManager_WrongType(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	reset, err := m.GenerateResetToken("uid-1", "ana@example.com")
	require.NoError(t, err)

	_, err = m.ValidateToken(reset, TokenTypeID)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestTokenManager_Expired(t *testing.T) {
	claims := UserClaims{
		UID:  "uid-1",
		Type: TokenTypeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ValidateToken(token, TokenTypeID)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager(testSecret, time.Hour).GenerateIDToken("uid-1", "")
	require.NoError(t, err)

	_, err = NewTokenManager("another-secret-another-secret-xx", time.Hour).ValidateToken(token, TokenTypeID)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
