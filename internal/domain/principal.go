package domain

import "context"

// Principal is the authenticated identity attached to each inbound request.
// Name matches an account name; admins may act on any debit account.
type Principal struct {
	Name    string
	IsAdmin bool
}

// CanDebit reports whether the principal may authorize a debit against the
// named account.
func (p Principal) CanDebit(account string) bool {
	return p.IsAdmin || p.Name == account
}

type principalContextKey struct{}

// WithPrincipal attaches the principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
