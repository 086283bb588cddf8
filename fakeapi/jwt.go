package fakeapi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "citizen-card-fakeapi"

// JWTManager issues and verifies HS256 session tokens and remembers revoked ones.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewJWTManager(secret string, ttl time.Duration, now func() time.Time) *JWTManager {
	if secret == "" {
		secret = uuid.NewString()
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: now, revoked: map[string]time.Time{}}
}

func (m *JWTManager) GenerateToken(memberID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   memberID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Verify returns the claims of a valid, unrevoked token.
func (m *JWTManager) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	m.mu.RLock()
	_, revoked := m.revoked[claims.ID]
	m.mu.RUnlock()
	if revoked {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func (m *JWTManager) Revoke(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID == "" {
		return
	}
	m.mu.Lock()
	m.revoked[claims.ID] = m.now()
	m.mu.Unlock()
}
