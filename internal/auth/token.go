package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose scopes a token to one use. A reset token must never
// authenticate a session and vice versa.
type Purpose string

const (
	// PurposeSession is a long-lived login credential.
	PurposeSession Purpose = "session"
	// PurposeReset is a short-lived password-reset credential.
	PurposeReset Purpose = "reset"
)

var (
	// ErrBadSignature indicates the token is malformed or was not signed
	// with the current secret.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrTokenExpired indicates the token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongPurpose indicates the token was issued for a different purpose.
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// tokenClaims is the signed payload. Subject carries the user ID.
type tokenClaims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed, time-limited bearer tokens.
// There is no revocation list: validity is derived from the signature
// and timestamps alone, so rotating the secret invalidates every
// outstanding token.
type TokenService struct {
	secret []byte
	ttls   map[Purpose]time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, sessionTTL, resetTTL time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttls: map[Purpose]time.Duration{
			PurposeSession: sessionTTL,
			PurposeReset:   resetTTL,
		},
		now: time.Now,
	}
}

// TTL returns the configured lifetime for a purpose.
func (s *TokenService) TTL(purpose Purpose) time.Duration {
	return s.ttls[purpose]
}

// Issue serializes and signs a token for the user, valid for the
// purpose's configured TTL, encoded as a URL-safe compact string.
func (s *TokenService) Issue(userID string, purpose Purpose) (string, error) {
	issued := s.now()

	claims := tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttls[purpose])),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Validate verifies the signature and expiry and checks the token was
// issued for the expected purpose. On success it returns the subject
// user ID. Whether that user still exists is the caller's concern.
func (s *TokenService) Validate(tokenString string, expected Purpose) (string, error) {
	claims := &tokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrBadSignature
	}

	if claims.Purpose != expected {
		return "", ErrWrongPurpose
	}
	if claims.Subject == "" {
		return "", ErrBadSignature
	}

	return claims.Subject, nil
}
