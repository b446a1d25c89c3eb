package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/ai"
	"github.com/bankfeed-dev/bankfeed/internal/dedup"
	"github.com/bankfeed-dev/bankfeed/internal/domain"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/progress"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// ProcessImport validates the batch, registers a session and returns its id
// immediately; the dry-run pipeline continues in a detached task. All failure
// information after this point is visible only through polling.
func (s *Service) ProcessImport(ctx context.Context, txs []domain.ParsedTransaction, account string) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("no transactions to process")
	}
	if account == "" {
		return "", fmt.Errorf("account is required")
	}
	for i, tx := range txs {
		if tx.Description == "" {
			return "", fmt.Errorf("transaction %d: description is required", i)
		}
		if tx.RawRow == "" {
			return "", fmt.Errorf("transaction %d: raw row is required", i)
		}
	}

	sessionID, bgCtx, scope, err := s.startSession(ctx, progress.StepDeduplicating, len(txs))
	if err != nil {
		return "", err
	}

	go s.runProcess(bgCtx, scope, sessionID, txs, account)

	return sessionID, nil
}

func (s *Service) runProcess(ctx context.Context, scope store.Scope, sessionID string, txs []domain.ParsedTransaction, account string) {
	log := logger.FromContext(ctx)
	defer s.recoverSession(log, sessionID)

	log.Info().
		Int("transaction_count", len(txs)).
		Str("account", account).
		Str("environment", scope.Environment).
		Msg("Starting import processing")

	// Deduplicate against the stored checksums for this account.
	stored, err := s.txStore.ChecksumsForAccount(ctx, scope, account)
	if err != nil {
		s.failSession(log, sessionID, fmt.Errorf("load stored checksums: %w", err))
		return
	}

	fresh, skipped := dedup.Filter(dedup.Prepare(txs), stored)
	_ = s.progress.Update(sessionID, func(sess *progress.Session) {
		sess.CurrentStep = progress.StepMatching
		sess.ProcessedCount += len(skipped)
	})

	log.Info().
		Int("fresh", len(fresh)).
		Int("skipped", len(skipped)).
		Msg("Deduplication complete")

	// Alias failures degrade matching, they do not abort the batch.
	aliases, err := s.aliasStore.ListAliases(ctx, scope)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load entity aliases, matching without them")
		aliases = nil
	}
	entities := s.catalog.Lookup()

	result := &domain.ProcessResult{Skipped: skipped}

	// Heuristic matching pass. Resolved rows are final; the rest queue for
	// the AI fallback.
	var unresolved []domain.ParsedTransaction
	for start := 0; start < len(fresh); start += s.batchSize {
		end := start + s.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}

		finalized := 0
		for _, tx := range fresh[start:end] {
			hit := s.matcher.Match(tx.Description, entities, aliases)
			if hit == nil {
				unresolved = append(unresolved, tx)
				continue
			}
			row := domain.ProcessedTransaction{
				ParsedTransaction: tx,
				Entity:            *hit,
				Status:            deriveStatus(*hit),
			}
			if row.Status == domain.StatusMatched {
				result.Matched = append(result.Matched, row)
			} else {
				result.Uncertain = append(result.Uncertain, row)
			}
			finalized++
		}

		_ = s.progress.Update(sessionID, func(sess *progress.Session) {
			sess.CurrentBatch++
			sess.ProcessedCount += finalized
		})
	}

	log.Info().
		Int("matched", len(result.Matched)).
		Int("unresolved", len(unresolved)).
		Msg("Heuristic matching complete")

	// AI fallback for whatever the matcher missed.
	_ = s.progress.Update(sessionID, func(sess *progress.Session) {
		sess.CurrentStep = progress.StepCategorizing
	})
	s.categorizeRows(ctx, sessionID, unresolved, entities, result)

	if result.Usage.APICalls > 0 {
		result.Usage.AvgCostPerCallUSD = result.Usage.TotalCostUSD / float64(result.Usage.APICalls)
	}

	now := time.Now()
	_ = s.progress.Update(sessionID, func(sess *progress.Session) {
		sess.Status = progress.StatusCompleted
		sess.CurrentStep = progress.StepDone
		sess.CompletedAt = &now
		sess.ProcessedCount = sess.TotalTransactions
		sess.Warnings = append(sess.Warnings, result.Warnings...)
		sess.Process = result
	})

	log.Info().
		Int("matched", len(result.Matched)).
		Int("uncertain", len(result.Uncertain)).
		Int("failed", len(result.Failed)).
		Int("skipped", len(result.Skipped)).
		Int("api_calls", result.Usage.APICalls).
		Int("cache_hits", result.Usage.CacheHits).
		Float64("total_cost_usd", result.Usage.TotalCostUSD).
		Msg("Import processing completed")
}

// categorizeRows runs the AI fallback over unresolved rows, filling the
// uncertain bucket and the session's usage stats. AI failures become
// import-level warnings, never batch failures.
func (s *Service) categorizeRows(ctx context.Context, sessionID string, unresolved []domain.ParsedTransaction, entities map[string]domain.EntityRef, result *domain.ProcessResult) {
	log := logger.FromContext(ctx)
	warned := make(map[string]bool)
	aiDown := false

	for start := 0; start < len(unresolved); start += s.batchSize {
		end := start + s.batchSize
		if end > len(unresolved) {
			end = len(unresolved)
		}

		for _, tx := range unresolved[start:end] {
			match := domain.EntityMatch{MatchType: domain.MatchNone}

			if !aiDown {
				entry, usage, err := s.categorizer.Categorize(ctx, tx.Description, sessionID)
				switch {
				case err != nil:
					switch ai.KindOf(err) {
					case ai.ErrNoAPIKey:
						// Credential is not coming back mid-batch; stop asking.
						aiDown = true
						addWarning(result, warned, WarnAIUnavailable)
					case ai.ErrInsufficientCredits:
						// Balance is not coming back mid-batch either.
						aiDown = true
						addWarning(result, warned, fmt.Sprintf("%s: %s", WarnAIError, err.Error()))
					default:
						addWarning(result, warned, fmt.Sprintf("%s: %s", WarnAIError, err.Error()))
					}
					log.Warn().Err(err).Str("description", tx.Description).Msg("AI categorization failed")
				case entry != nil:
					match = domain.EntityMatch{
						EntityName: entry.EntityName,
						MatchType:  domain.MatchAI,
						Confidence: aiConfidence,
					}
					// Link the id when the model names a known entity.
					if ref, ok := lookupEntity(entities, entry.EntityName); ok {
						match.EntityID = ref.ID
						match.EntityName = ref.Name
						match.EntityURL = ref.URL
					}
					if usage != nil {
						if usage.Cached {
							result.Usage.CacheHits++
						} else {
							result.Usage.APICalls++
						}
						result.Usage.TotalTokens += usage.InputTokens + usage.OutputTokens
						result.Usage.TotalCostUSD += usage.CostUSD
					}
				}
			}

			result.Uncertain = append(result.Uncertain, domain.ProcessedTransaction{
				ParsedTransaction: tx,
				Entity:            match,
				Status:            domain.StatusUncertain,
			})
		}

		finalized := end - start
		_ = s.progress.Update(sessionID, func(sess *progress.Session) {
			sess.CurrentBatch++
			sess.ProcessedCount += finalized
		})
	}
}

// deriveStatus buckets a resolved row: heuristic matches with solid
// confidence are matched, everything else needs review.
func deriveStatus(m domain.EntityMatch) domain.RowStatus {
	if m.Heuristic() && m.Confidence >= matchedConfidence {
		return domain.StatusMatched
	}
	return domain.StatusUncertain
}

func addWarning(result *domain.ProcessResult, warned map[string]bool, warning string) {
	if warned[warning] {
		return
	}
	warned[warning] = true
	result.Warnings = append(result.Warnings, warning)
}

func lookupEntity(entities map[string]domain.EntityRef, name string) (domain.EntityRef, bool) {
	want := strings.ToUpper(strings.TrimSpace(name))
	if want == "" {
		return domain.EntityRef{}, false
	}
	for candidate, ref := range entities {
		if strings.ToUpper(strings.TrimSpace(candidate)) == want {
			return ref, true
		}
	}
	return domain.EntityRef{}, false
}
