package store

import "context"

// DefaultEnvironment is the storage environment used when a request does not
// name one.
const DefaultEnvironment = "default"

// Scope routes reads and writes to the correct backing environment, e.g. a
// named isolated test environment. It must be captured at session-start time
// and carried explicitly into detached background tasks; request context does
// not survive the fire-and-forget boundary.
type Scope struct {
	Environment string
}

func (s Scope) environment() string {
	if s.Environment == "" {
		return DefaultEnvironment
	}
	return s.Environment
}

type scopeKey struct{}

// WithScope attaches a storage scope to the context.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext retrieves the storage scope from the context, or the
// default scope when none was attached.
func ScopeFromContext(ctx context.Context) Scope {
	if scope, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return scope
	}
	return Scope{Environment: DefaultEnvironment}
}
