// Package auth implements the admin credential: a bcrypt-hashed password
// stored in the config table and HS256 bearer tokens with a 24h lifetime.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is the bearer token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// tokenSubject identifies the single admin principal.
const tokenSubject = "admin"

// ErrInvalidToken covers expired, malformed, or wrongly-signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// HashPassword bcrypt-hashes a password with the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenIssuer mints and verifies the admin bearer tokens.
// Safe for concurrent use; the secret is immutable after construction.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // injectable for tests
}

// NewTokenIssuer creates an issuer signing with the given process-wide secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a signed token for the admin principal.
func (t *TokenIssuer) Issue() (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token. It returns ErrInvalidToken for
// anything but a well-formed, unexpired HS256 token for the admin subject.
func (t *TokenIssuer) Verify(tokenString string) error {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != tokenSubject {
		return ErrInvalidToken
	}
	return nil
}
