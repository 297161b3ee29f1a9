package auth

import (
	"context"

	"github.com/ciipa/plataforma/internal/model"
)

type contextKey struct{}

// Identity is the immutable authenticated-user record attached to a request
// context once by the auth middleware.
type Identity struct {
	UserID       int64
	Email        string
	Role         string
	SessionToken string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return id.Role == model.RoleAdmin
}
