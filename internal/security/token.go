package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mibarrio-backend/internal/ids"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeID    TokenType = "id"
	TokenTypeReset TokenType = "password_reset"
)

const (
	issuer           = "mibarrio-local-identity"
	resetTokenExpiry = time.Hour
)

// UserClaims are the claims of tokens issued by the local identity provider
type UserClaims struct {
	UID   string    `json:"uid"`
	Email string    `json:"email,omitempty"`
	Type  TokenType `json:"type"`
	jwt.RegisteredClaims
}

type TokenManager interface {
	GenerateIDToken(uid, email string) (string, error)
	GenerateResetToken(uid, email string) (string, error)
	ValidateToken(tokenString string, want TokenType) (*UserClaims, error)
}

type tokenManager struct {
	secret   []byte
	idExpiry time.Duration
}

func NewTokenManager(secret string, idExpiry time.Duration) TokenManager {
	if idExpiry <= 0 {
		idExpiry = time.Hour
	}
	return &tokenManager{
		secret:   []byte(secret),
		idExpiry: idExpiry,
	}
}

func (m *tokenManager) sign(uid, email string, typ TokenType, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UID:   uid,
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) GenerateIDToken(uid, email string) (string, error) {
	return m.sign(uid, email, TokenTypeID, m.idExpiry)
}

func (m *tokenManager) GenerateResetToken(uid, email string) (string, error) {
	return m.sign(uid, email, TokenTypeReset, resetTokenExpiry)
}

func (m *tokenManager) ValidateToken(tokenString string, want TokenType) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	if claims.UID == "" {
		claims.UID = claims.Subject
	}
	return claims, nil
}
