// Package auth issues and verifies the JWT login tokens handed to parent
// apps after a successful login.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/talhaxhahid/ChildCompass-Backend/pkg/errors"
)

// Claims carries the authenticated parent identity
type Claims struct {
	ParentID int64  `json:"id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies login tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager. ttl bounds how long a login stays
// valid.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given parent
func (tm *TokenManager) Issue(parentID int64, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		ParentID: parentID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Verify parses and validates a token, returning its claims
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrInvalidToken
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
