// Package importer orchestrates the transaction import pipeline: a dry-run
// process phase (dedup, match, categorize, bucket) and an execute phase that
// writes confirmed rows to the external record store. Both run as detached
// background tasks tracked through the progress store.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bankfeed-dev/bankfeed/internal/ai"
	"github.com/bankfeed-dev/bankfeed/internal/domain"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/matcher"
	"github.com/bankfeed-dev/bankfeed/internal/progress"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// DefaultBatchSize bounds how many rows are finalized between progress
// updates, and how long a synchronous store write can block the scheduler.
const DefaultBatchSize = 25

// matchedConfidence is the minimum confidence for the matched bucket;
// heuristic matches carry 1.0, AI matches sit below it.
const matchedConfidence = 0.8

// aiConfidence is the confidence assigned to AI-resolved matches. Below the
// matched threshold, so AI rows always land in the uncertain bucket for
// review.
const aiConfidence = 0.7

// Import-level warning codes for AI subsystem failures. Categorization is a
// best-effort enhancement; these never abort a batch.
const (
	WarnAIUnavailable = "AI_CATEGORIZATION_UNAVAILABLE"
	WarnAIError       = "AI_API_ERROR"
)

// EntityLookup supplies the known-entity table to the matcher.
type EntityLookup interface {
	Lookup() map[string]domain.EntityRef
}

// Categorizer is the AI fallback consulted for rows the matcher misses.
type Categorizer interface {
	Categorize(ctx context.Context, description, importBatchID string) (*ai.CacheEntry, *ai.Usage, error)
}

// RecordStore writes confirmed rows to the external record store.
type RecordStore interface {
	CreateTransactionPage(ctx context.Context, tx *domain.ConfirmedTransaction) (string, error)
}

// Service drives import sessions. One detached goroutine per session; no
// ordering guarantee between sessions, strict stage ordering within one.
type Service struct {
	progress    *progress.Store
	txStore     store.TransactionStore
	aliasStore  store.AliasStore
	catalog     EntityLookup
	matcher     *matcher.Matcher
	categorizer Categorizer
	records     RecordStore
	batchSize   int
}

// NewService wires the orchestrator. batchSize <= 0 selects DefaultBatchSize.
func NewService(
	prog *progress.Store,
	txStore store.TransactionStore,
	aliasStore store.AliasStore,
	catalog EntityLookup,
	m *matcher.Matcher,
	categorizer Categorizer,
	records RecordStore,
	batchSize int,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		progress:    prog,
		txStore:     txStore,
		aliasStore:  aliasStore,
		catalog:     catalog,
		matcher:     m,
		categorizer: categorizer,
		records:     records,
		batchSize:   batchSize,
	}
}

// GetProgress returns the session state, or nil for an unknown or expired id.
func (s *Service) GetProgress(sessionID string) *progress.Session {
	return s.progress.Get(sessionID)
}

// startSession registers a new session and returns its id plus the context
// for the detached task. The storage scope and logger are captured here and
// rebuilt onto a fresh context: the request context does not survive the
// fire-and-forget boundary and may be cancelled the moment the response is
// written.
func (s *Service) startSession(ctx context.Context, step progress.Step, total int) (string, context.Context, store.Scope, error) {
	sessionID := uuid.NewString()
	scope := store.ScopeFromContext(ctx)
	log := logger.FromContext(ctx).With().Str("session_id", sessionID).Logger()

	err := s.progress.Create(&progress.Session{
		SessionID:         sessionID,
		Status:            progress.StatusProcessing,
		CurrentStep:       step,
		TotalTransactions: total,
		StartedAt:         time.Now(),
	})
	if err != nil {
		return "", nil, store.Scope{}, fmt.Errorf("create session: %w", err)
	}

	bgCtx := store.WithScope(logger.WithContext(context.Background(), log), scope)
	return sessionID, bgCtx, scope, nil
}

// failSession marks a session terminal-failed. Session-fatal errors are
// recorded here rather than propagated; a crash in one session must never
// affect another session or the serving process.
func (s *Service) failSession(log zerolog.Logger, sessionID string, err error) {
	log.Error().Err(err).Msg("Import session failed")
	now := time.Now()
	_ = s.progress.Update(sessionID, func(sess *progress.Session) {
		sess.Status = progress.StatusFailed
		sess.CompletedAt = &now
		sess.Errors = append(sess.Errors, err.Error())
	})
}

// recoverSession converts a panic in a session task into a failed session.
func (s *Service) recoverSession(log zerolog.Logger, sessionID string) {
	if r := recover(); r != nil {
		s.failSession(log, sessionID, fmt.Errorf("panic in import session: %v", r))
	}
}
