package auth

import (
	"context"

	"github.com/lreview/lreview/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal adds the resolved principal to the context.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal from the context.
// Returns nil if the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

// MustPrincipalFromContext retrieves the principal from the context.
// Panics if not present (use only behind the auth middleware).
func MustPrincipalFromContext(ctx context.Context) *model.Principal {
	p := PrincipalFromContext(ctx)
	if p == nil {
		panic("principal not found - ensure auth middleware is applied")
	}
	return p
}
