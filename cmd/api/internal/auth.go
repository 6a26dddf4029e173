package internal

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeRead = "read"
	// ScopeLive may start and stop the order runner; it implies read.
	ScopeLive = "live"

	tokenIssuer = "mogulfx-api"

	// AdminKeyHeader carries API_ADMIN_KEY when asking for a live token.
	AdminKeyHeader = "X-Admin-Key"
)

var ErrUnknownScope = errors.New("unknown scope")

// OperatorClaims identifies who is driving the live runner.
type OperatorClaims struct {
	Operator string   `json:"operator"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

func (c *OperatorClaims) Allows(scope string) bool {
	if slices.Contains(c.Scopes, scope) {
		return true
	}
	return scope == ScopeRead && slices.Contains(c.Scopes, ScopeLive)
}

type JWTManager struct {
	secret   []byte
	adminKey []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTManager reads JWT_SECRET_KEY, API_ADMIN_KEY and JWT_TTL_HOURS
// (default 24). Without API_ADMIN_KEY no live token can be issued.
func NewJWTManager() *JWTManager {
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		secret = "your-secret-key-change-this-in-production"
	}
	jm := NewJWTManagerWithSecret(secret).WithAdminKey(os.Getenv("API_ADMIN_KEY"))
	if h, err := strconv.Atoi(os.Getenv("JWT_TTL_HOURS")); err == nil && h > 0 {
		jm.ttl = time.Duration(h) * time.Hour
	}
	return jm
}

func NewJWTManagerWithSecret(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: 24 * time.Hour, now: time.Now}
}

func (jm *JWTManager) WithAdminKey(key string) *JWTManager {
	jm.adminKey = []byte(key)
	return jm
}

// CanGrant reports whether a caller presenting key may receive scopes.
// Read is public; live needs the configured admin key.
func (jm *JWTManager) CanGrant(scopes []string, key string) bool {
	if !slices.Contains(scopes, ScopeLive) {
		return true
	}
	if len(jm.adminKey) == 0 || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare(jm.adminKey, []byte(key)) == 1
}

// NormalizeScopes defaults to read-only and rejects anything unknown.
func NormalizeScopes(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return []string{ScopeRead}, nil
	}
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s != ScopeRead && s != ScopeLive {
			return nil, fmt.Errorf("%q: %w", s, ErrUnknownScope)
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Issue signs a token for operator and returns it with its expiry.
func (jm *JWTManager) Issue(operator string, scopes []string) (string, time.Time, error) {
	issued := jm.now()
	expires := issued.Add(jm.ttl)
	claims := &OperatorClaims{
		Operator: operator,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (jm *JWTManager) Verify(token string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return jm.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Operator == "" {
		return nil, errors.New("verify token: no operator")
	}
	return claims, nil
}
