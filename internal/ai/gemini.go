package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for merchant categorization.
const DefaultModelName = "gemini-2.5-flash"

// Completion is one provider response with its token accounting.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// CompletionService abstracts the external LLM completion endpoint.
// This interface enables mocking and testing of categorization.
type CompletionService interface {
	// Complete sends a text prompt and returns the model's response text
	// plus token counts.
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// GeminiCompleter is the concrete CompletionService backed by Gemini.
type GeminiCompleter struct {
	apiKey string
	model  string
}

// NewGeminiCompleter creates a completer for the given credential and model.
// model "" selects DefaultModelName.
func NewGeminiCompleter(apiKey, model string) *GeminiCompleter {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiCompleter{apiKey: apiKey, model: model}
}

// Complete implements CompletionService.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (*Completion, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini: empty response from model")
	}

	out := &Completion{Text: text}
	if um := resp.UsageMetadata; um != nil {
		out.InputTokens = int64(um.PromptTokenCount)
		out.OutputTokens = int64(um.CandidatesTokenCount)
	}
	return out, nil
}

// classify maps a raw provider error to a classified *Error. Already
// classified errors pass through unchanged.
func classify(err error) *Error {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &Error{Kind: ErrRateLimited, Message: apiErr.Message, Err: err}
		case apiErr.Code == http.StatusBadRequest && mentionsInsufficientBalance(apiErr.Message):
			return &Error{Kind: ErrInsufficientCredits, Message: apiErr.Message, Err: err}
		}
		return &Error{Kind: ErrAPI, Message: apiErr.Message, Err: err}
	}

	return &Error{Kind: ErrAPI, Message: err.Error(), Err: err}
}

func mentionsInsufficientBalance(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "insufficient balance") ||
		strings.Contains(m, "insufficient credit") ||
		strings.Contains(m, "quota exceeded for free tier")
}
