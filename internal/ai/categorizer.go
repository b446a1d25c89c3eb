// Package ai implements the fallback categorizer: rows the deterministic
// matcher cannot resolve are sent to an external LLM, with a process-lifetime
// response cache and a durable, cost-tracked usage ledger.
package ai

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/logger"
)

// DefaultMaxAttempts bounds the rate-limit retry loop: five 429s followed by
// a success still succeed, a sixth exhausts the budget.
const DefaultMaxAttempts = 6

const defaultBackoffBase = 500 * time.Millisecond

// CacheEntry is one cached categorization, keyed by the upper-cased trimmed
// description. Lives for the process lifetime only.
type CacheEntry struct {
	Description string    `json:"description"`
	EntityName  string    `json:"entity_name"`
	Category    string    `json:"category"`
	CachedAt    time.Time `json:"cached_at"`
}

// Usage reports the token cost of one Categorize call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	Cached       bool
}

// UsageRecord is one append-only ledger row persisted for cost auditing.
// Never mutated after insert.
type UsageRecord struct {
	Description   string
	EntityName    string
	Category      string
	InputTokens   int64
	OutputTokens  int64
	CostUSD       float64
	Cached        bool
	ImportBatchID string
	CreatedAt     time.Time
}

// Ledger appends usage records to durable storage.
type Ledger interface {
	AppendUsage(ctx context.Context, rec *UsageRecord) error
}

// Categorizer resolves merchant descriptions via the completion endpoint,
// cache-first. Safe for concurrent use; concurrent misses on the same key may
// both call the provider (documented at-least-once behavior, no single-flight).
type Categorizer struct {
	completer   CompletionService
	ledger      Ledger
	pricing     Pricing
	maxAttempts int
	backoffBase time.Duration
	sleep       func(time.Duration)

	mu    sync.Mutex
	cache map[string]*CacheEntry
}

// NewCategorizer creates a Categorizer. completer may be nil when no API
// credential is configured; Categorize then fails with ErrNoAPIKey.
// maxAttempts <= 0 selects DefaultMaxAttempts.
func NewCategorizer(completer CompletionService, ledger Ledger, pricing Pricing, maxAttempts int) *Categorizer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Categorizer{
		completer:   completer,
		ledger:      ledger,
		pricing:     pricing,
		maxAttempts: maxAttempts,
		backoffBase: defaultBackoffBase,
		sleep:       time.Sleep,
		cache:       make(map[string]*CacheEntry),
	}
}

// CacheKey normalizes a description into its cache key.
func CacheKey(description string) string {
	return strings.ToUpper(strings.TrimSpace(description))
}

type modelAnswer struct {
	EntityName string `json:"entityName"`
	Category   string `json:"category"`
}

// Categorize resolves a raw description to an entity name and category.
// Cache hits record a zero-cost cached=true ledger row and skip the network
// entirely. importBatchID links ledger rows to the session that paid for them.
func (c *Categorizer) Categorize(ctx context.Context, description, importBatchID string) (*CacheEntry, *Usage, error) {
	log := logger.FromContext(ctx)
	key := CacheKey(description)

	c.mu.Lock()
	entry := c.cache[key]
	c.mu.Unlock()

	if entry != nil {
		usage := &Usage{Cached: true}
		c.appendLedger(ctx, entry, usage, importBatchID)
		return entry, usage, nil
	}

	if c.completer == nil {
		return nil, nil, &Error{Kind: ErrNoAPIKey, Message: "no API credential configured"}
	}

	comp, err := c.completeWithRetry(ctx, buildCategorizePrompt(description))
	if err != nil {
		return nil, nil, err
	}

	var answer modelAnswer
	if jsonErr := json.Unmarshal([]byte(cleanModelJSON(comp.Text)), &answer); jsonErr != nil {
		return nil, nil, &Error{
			Kind:    ErrAPI,
			Message: "unparseable model response: " + jsonErr.Error(),
			Err:     jsonErr,
		}
	}

	entry = &CacheEntry{
		Description: description,
		EntityName:  answer.EntityName,
		Category:    answer.Category,
		CachedAt:    time.Now(),
	}

	c.mu.Lock()
	c.cache[key] = entry
	c.mu.Unlock()

	usage := &Usage{
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
		CostUSD:      c.pricing.Cost(comp.InputTokens, comp.OutputTokens),
	}
	c.appendLedger(ctx, entry, usage, importBatchID)

	log.Debug().
		Str("entity_name", entry.EntityName).
		Str("category", entry.Category).
		Int64("input_tokens", usage.InputTokens).
		Int64("output_tokens", usage.OutputTokens).
		Float64("cost_usd", usage.CostUSD).
		Msg("Categorized description via model")

	return entry, usage, nil
}

// completeWithRetry retries rate-limited calls with exponential backoff plus
// random jitter, up to maxAttempts total attempts. All other errors surface
// immediately, classified.
func (c *Categorizer) completeWithRetry(ctx context.Context, prompt string) (*Completion, error) {
	for attempt := 0; ; attempt++ {
		comp, err := c.completer.Complete(ctx, prompt)
		if err == nil {
			return comp, nil
		}

		aiErr := classify(err)
		if aiErr.Kind != ErrRateLimited || attempt >= c.maxAttempts-1 {
			return nil, aiErr
		}

		delay := c.backoffBase * (1 << attempt)
		delay += time.Duration(rand.Int63n(int64(c.backoffBase)))
		log := logger.FromContext(ctx)
		log.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Rate limited by model provider, backing off")
		c.sleep(delay)
	}
}

// appendLedger persists a usage row. Ledger failures are logged, not
// surfaced; cost auditing must never fail a categorization that succeeded.
func (c *Categorizer) appendLedger(ctx context.Context, entry *CacheEntry, usage *Usage, importBatchID string) {
	if c.ledger == nil {
		return
	}
	rec := &UsageRecord{
		Description:   entry.Description,
		EntityName:    entry.EntityName,
		Category:      entry.Category,
		InputTokens:   usage.InputTokens,
		OutputTokens:  usage.OutputTokens,
		CostUSD:       usage.CostUSD,
		Cached:        usage.Cached,
		ImportBatchID: importBatchID,
		CreatedAt:     time.Now(),
	}
	if err := c.ledger.AppendUsage(ctx, rec); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to append AI usage ledger row")
	}
}
