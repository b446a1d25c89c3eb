package store

import (
	"context"
	"testing"
)

func TestScopeFromContextDefault(t *testing.T) {
	scope := ScopeFromContext(context.Background())
	if scope.Environment != DefaultEnvironment {
		t.Errorf("expected %q, got %q", DefaultEnvironment, scope.Environment)
	}
}

func TestScopeRoundTrip(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{Environment: "staging"})
	scope := ScopeFromContext(ctx)
	if scope.Environment != "staging" {
		t.Errorf("expected staging, got %q", scope.Environment)
	}
}

func TestScopeEnvironmentFallback(t *testing.T) {
	if got := (Scope{}).environment(); got != DefaultEnvironment {
		t.Errorf("empty scope must fall back to %q, got %q", DefaultEnvironment, got)
	}
	if got := (Scope{Environment: "test-env"}).environment(); got != "test-env" {
		t.Errorf("expected test-env, got %q", got)
	}
}
