// Package auth issues and verifies session tokens, hashes passwords and
// loads the role policy.
package auth

import (
	"errors"
	"fmt"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ domain.TokenManager = (*JWTManager)(nil)

type sessionClaims struct {
	models.Claims
	jwt.RegisteredClaims
}

// JWTManager signs HS256 tokens that carry the caller's identity.
type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewJWTManager(secret, issuer string, ttl time.Duration) *JWTManager {
	m := &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
	)
	return m
}

func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

func (m *JWTManager) Issue(claims models.Claims) (*models.Session, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	id := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    m.issuer,
			Subject:   claims.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &models.Session{
		Token:     signed,
		ID:        id,
		Claims:    claims,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify returns domain.ErrInvalidToken for any token that is malformed,
// signed with another key or algorithm, expired, or from another issuer.
func (m *JWTManager) Verify(tokenString string) (*models.Session, error) {
	var claims sessionClaims
	token, err := m.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Claims.ID == "" || claims.RegisteredClaims.ID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, errors.New("missing identity claims"))
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidToken, claims.Role)
	}

	return &models.Session{
		Token:     tokenString,
		ID:        claims.RegisteredClaims.ID,
		Claims:    claims.Claims,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
