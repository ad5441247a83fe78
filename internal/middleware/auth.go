// Package middleware provides HTTP middleware for the LockCase backend.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lockcase/backend/internal/domain/identity"
	"github.com/lockcase/backend/internal/errors"
	"github.com/lockcase/backend/internal/httputil"
	"github.com/lockcase/backend/pkg/logger"
)

// AuthMiddleware validates bearer tokens and binds the caller identity to the
// request context. The subject claim is the only claim consumed.
type AuthMiddleware struct {
	secret    []byte
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the authentication middleware. Paths in skipPaths
// bypass token validation.
func NewAuthMiddleware(secret []byte, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{secret: secret, logger: log, skipPaths: skip}
}

// Handler returns the middleware handler. Requests without a resolvable
// caller identity are rejected before any store operation runs.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteFailure(w, errors.Unauthenticated("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteFailure(w, errors.Unauthenticated("invalid Authorization header format"))
			return
		}

		subject, err := m.validateToken(parts[1])
		if err != nil {
			m.logger.WithError(err).WithFields(map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("token validation failed")
			httputil.WriteFailure(w, errors.Unauthenticated("invalid token"))
			return
		}

		ctx := identity.WithCaller(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken parses the token and returns the subject claim.
func (m *AuthMiddleware) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("missing subject claim")
	}
	return claims.Subject, nil
}
