package domain

import "github.com/shopspring/decimal"

// UsageStats aggregates AI categorizer activity over one import session.
type UsageStats struct {
	APICalls          int     `json:"api_calls"`
	CacheHits         int     `json:"cache_hits"`
	TotalTokens       int64   `json:"total_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
	AvgCostPerCallUSD float64 `json:"avg_cost_per_call_usd"`
}

// ProcessResult is the bucketed outcome of a dry-run import, consumed by the
// review UI before the user confirms rows for execution.
type ProcessResult struct {
	Matched   []ProcessedTransaction `json:"matched"`
	Uncertain []ProcessedTransaction `json:"uncertain"`
	Failed    []ProcessedTransaction `json:"failed"`
	Skipped   []ProcessedTransaction `json:"skipped"`
	Warnings  []string               `json:"warnings,omitempty"`
	Usage     UsageStats             `json:"usage"`
}

// RowFailure records one confirmed row whose record-store write failed.
type RowFailure struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Error       string          `json:"error"`
}

// ExecuteResult is the outcome of writing a confirmed batch to the record
// store. Failed rows do not abort the remaining rows.
type ExecuteResult struct {
	Imported int          `json:"imported"`
	Failed   []RowFailure `json:"failed"`
	Skipped  int          `json:"skipped"`
}
