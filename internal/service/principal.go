package service

import (
	"context"

	"github.com/loyalbridge/admin/internal/model"
)

// Principal is the authenticated admin attached to a request.
type Principal struct {
	AdminID   int64
	Email     string
	Role      model.AdminRole
	Authority string // ROLE_<role>
}

// HasAnyRole reports whether the principal holds one of roles.
func (p *Principal) HasAnyRole(roles ...model.AdminRole) bool {
	if p == nil {
		return false
	}
	return model.HasAnyRole(p.Role, roles...)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// WithoutPrincipal returns a copy of ctx with any principal cleared.
func WithoutPrincipal(ctx context.Context) context.Context {
	return context.WithValue(ctx, principalKey{}, (*Principal)(nil))
}

// PrincipalFromContext returns the request's principal, or nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
