// Package http exposes the Orchestrator over the §6.5 HTTP/stream
// boundary: POST /chat, POST /stream (SSE), GET /health, GET /metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tenantKey struct{}

// TenantFromContext returns the tenant ID a valid bearer token carried as
// its subject claim.
func TenantFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tenantKey{}).(string)
	return v, ok
}

// TokenClaims is the signed shape expected on incoming bearer tokens: the
// subject claim is the tenant ID, embedding the caller's identity
// directly as the JWT subject.
type TokenClaims struct {
	jwt.RegisteredClaims
}

var ErrMissingBearer = errors.New("transport: missing bearer token")

// AuthMiddleware validates an HS256 bearer token and injects its subject
// as the tenant ID into the request context. A nil/empty secret disables
// auth entirely (local/dev mode), mirroring auth.Service.Enabled()'s gate.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				writeError(w, http.StatusUnauthorized, ErrMissingBearer)
				return
			}
			raw := strings.TrimSpace(header[len("bearer "):])
			tenantID, err := validateToken(raw, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateToken(raw, secret string) (string, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("transport: invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("transport: token missing subject")
	}
	return claims.Subject, nil
}

// IssueToken signs a bearer token for tenantID, used by the CLI's local
// dev-token command and by tests.
func IssueToken(tenantID, secret string, ttl time.Duration) (string, error) {
	claims := TokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   tenantID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
