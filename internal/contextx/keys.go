// Package contextx carries request scoped values (request id, authenticated
// user) through a context.Context.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	userKey contextKey = iota
	requestIDKey
)
