// Package auth implements the credential handshake for the tool service.
//
// Clients present an ID/secret pair from a static allow-list and receive a
// short-lived HS256 token. Credential comparison is constant-time so the
// handshake leaks nothing about which part of a pair was wrong.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Credential is one allow-list entry.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// Claims is the token payload issued to authenticated clients.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Service issues and verifies access tokens for tool-service clients.
type Service struct {
	secret  []byte
	ttl     time.Duration
	allowed map[string][32]byte
	now     func() time.Time
}

func NewService(secret string, ttl time.Duration, creds []Credential) *Service {
	allowed := make(map[string][32]byte, len(creds))
	for _, c := range creds {
		allowed[c.ClientID] = sha256.Sum256([]byte(c.ClientSecret))
	}
	return &Service{
		secret:  []byte(secret),
		ttl:     ttl,
		allowed: allowed,
		now:     time.Now,
	}
}

// TTL returns the validity window of issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// Authenticate checks the pair against the allow-list and issues a token.
// The secret comparison runs over fixed-length digests so timing does not
// depend on where the mismatch is.
func (s *Service) Authenticate(clientID, clientSecret string) (string, error) {
	stored, ok := s.allowed[clientID]
	presented := sha256.Sum256([]byte(clientSecret))
	match := subtle.ConstantTimeCompare(stored[:], presented[:]) == 1
	if !ok || !match {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature and expiry and returns its claims.
// Expired tokens yield ErrTokenExpired so callers can renew.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
