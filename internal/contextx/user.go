package contextx

import "context"

// Principal is the authenticated user behind a request.
type Principal struct {
	UserID string
	Email  string
}

// WithPrincipal returns a derived context that carries p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, userKey, p)
}

// PrincipalFromContext extracts the Principal stored in ctx.
// The boolean return value indicates whether one was present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(userKey).(Principal)
	return p, ok
}
