// Package authn issues and validates the bearer tokens that gate the
// dashboard API and WebSocket endpoint.
package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultExpiry is the token lifetime issued by Login when the caller
// doesn't override it.
const defaultExpiry = 8 * time.Hour

var (
	ErrAuthDisabled = errors.New("authn: token signing disabled, no secret configured")
	ErrInvalidToken = errors.New("authn: invalid or expired token")
)

// JWTService signs and verifies HS256 bearer tokens carrying a username
// subject.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService builds a JWTService. An empty secret disables signing:
// Generate and Validate both return ErrAuthDisabled.
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	if expiry == 0 {
		expiry = defaultExpiry
	}
	return &JWTService{secret: []byte(secret), expiry: expiry}
}

// Claims is the JWT payload issued for a dashboard session.
type Claims struct {
	jwt.RegisteredClaims
}

// Generate issues a signed token for username.
func (s *JWTService) Generate(username string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if strings.TrimSpace(username) == "" {
		return "", errors.New("authn: username required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and verifies token, returning the embedded username.
func (s *JWTService) Validate(token string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrAuthDisabled
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Enabled reports whether the service has a signing secret configured.
func (s *JWTService) Enabled() bool {
	return s != nil && len(s.secret) > 0
}
