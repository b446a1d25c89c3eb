package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			"RateLimited",
			genai.APIError{Code: http.StatusTooManyRequests, Message: "resource exhausted"},
			ErrRateLimited,
		},
		{
			"InsufficientBalance",
			genai.APIError{Code: http.StatusBadRequest, Message: "insufficient balance on account"},
			ErrInsufficientCredits,
		},
		{
			"FreeTierQuota",
			genai.APIError{Code: http.StatusBadRequest, Message: "Quota exceeded for free tier"},
			ErrInsufficientCredits,
		},
		{
			"OtherBadRequest",
			genai.APIError{Code: http.StatusBadRequest, Message: "invalid argument"},
			ErrAPI,
		},
		{
			"ServerError",
			genai.APIError{Code: http.StatusInternalServerError, Message: "backend error"},
			ErrAPI,
		},
		{
			"GenericError",
			errors.New("dial tcp: connection refused"),
			ErrAPI,
		},
		{
			"AlreadyClassifiedPassesThrough",
			&Error{Kind: ErrNoAPIKey, Message: "no credential"},
			ErrNoAPIKey,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if got.Kind != tc.want {
				t.Errorf("classify(%v).Kind = %s, want %s", tc.err, got.Kind, tc.want)
			}
			if got.Message == "" {
				t.Error("classified error must preserve a message")
			}
		})
	}
}

func TestClassifyPreservesProviderMessage(t *testing.T) {
	err := classify(genai.APIError{Code: http.StatusServiceUnavailable, Message: "model overloaded"})
	if err.Kind != ErrAPI {
		t.Fatalf("expected API_ERROR, got %s", err.Kind)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("provider message lost: %s", err.Error())
	}
}

// Raw provider 429s must be classified and retried, not surfaced immediately.
func TestCategorizeRetriesRawProviderRateLimit(t *testing.T) {
	calls := 0
	completer := &MockCompletionService{
		CompleteFunc: func(ctx context.Context, prompt string) (*Completion, error) {
			calls++
			if calls < 3 {
				return nil, genai.APIError{Code: http.StatusTooManyRequests, Message: "resource exhausted"}
			}
			return &Completion{Text: `{"entityName": "Kmart", "category": "Shopping"}`}, nil
		},
	}
	c := newTestCategorizer(completer, &MockLedger{})

	entry, _, err := c.Categorize(context.Background(), "KMART 221", "")
	if err != nil {
		t.Fatalf("expected success after retrying raw 429s, got %v", err)
	}
	if entry.EntityName != "Kmart" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestCategorizeSurfacesRawInsufficientBalance(t *testing.T) {
	completer := &MockCompletionService{
		CompleteFunc: func(ctx context.Context, prompt string) (*Completion, error) {
			return nil, genai.APIError{Code: http.StatusBadRequest, Message: "insufficient balance on account"}
		},
	}
	c := newTestCategorizer(completer, &MockLedger{})

	_, _, err := c.Categorize(context.Background(), "KMART 221", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != ErrInsufficientCredits {
		t.Errorf("expected INSUFFICIENT_CREDITS, got %s", KindOf(err))
	}
	if completer.Calls != 1 {
		t.Errorf("balance errors must not be retried, got %d attempts", completer.Calls)
	}
}
