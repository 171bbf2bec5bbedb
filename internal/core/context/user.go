// Package context carries request-scoped user and trace values.
package context

import (
	"context"
)

// UserContext holds the authenticated caller's identity.
type UserContext struct {
	UserID   string
	TenantID string
	Email    string
	Roles    []string
}

type userKey struct{}

// WithUser stores user identity in ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser returns the user identity from ctx, or nil.
func GetUser(ctx context.Context) *UserContext {
	if u, ok := ctx.Value(userKey{}).(*UserContext); ok {
		return u
	}
	return nil
}

// GetUserContext is an alias kept for handler readability.
func GetUserContext(ctx context.Context) *UserContext {
	return GetUser(ctx)
}

// GetTenantID returns the tenant id of the authenticated user, or "".
func GetTenantID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.TenantID
	}
	return ""
}

// HasRole reports whether the user in ctx carries the given role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
