// Package identity carries the caller's verified identity through the request
// context. The auth middleware is the only writer; handlers read via
// FromContext and never accept a caller-supplied owner.
package identity

import (
	"context"

	"github.com/lockcase/backend/internal/errors"
)

type contextKey struct{}

var callerKey contextKey

// WithCaller binds the verified caller identity to the context.
func WithCaller(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, callerKey, subject)
}

// FromContext returns the caller identity bound to the context. It fails with
// Unauthenticated when no identity is present; this is checked before any
// store operation is attempted.
func FromContext(ctx context.Context) (string, error) {
	subject, _ := ctx.Value(callerKey).(string)
	if subject == "" {
		return "", errors.Unauthenticated("")
	}
	return subject, nil
}
