package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity is the caller resolved from a verified token. It lives in the
// request context for the duration of one request.
type Identity struct {
	UserID    uuid.UUID
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IdentityFromClaims converts decoded claims. A subject that is not a UUID
// is reported as a malformed token.
func IdentityFromClaims(c *Claims) (*Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, newTokenError(CodeMalformed, "subject is not a uuid", err)
	}

	ident := &Identity{UserID: id, Role: c.Role}
	if c.ExpiresAt != nil {
		ident.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		ident.IssuedAt = c.IssuedAt.Time
	}
	return ident, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying ident.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ident)
}

// IdentityFromContext returns the identity attached by the request gate.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(ctxKey{}).(*Identity)
	return ident, ok && ident != nil
}
