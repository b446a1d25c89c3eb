package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/dedup"
	"github.com/bankfeed-dev/bankfeed/internal/domain"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/progress"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// ExecuteImport validates the confirmed batch, registers a session and
// returns its id immediately; record-store writes continue in a detached
// task. Each row's outcome is independent: one failure never aborts the rest.
func (s *Service) ExecuteImport(ctx context.Context, txs []domain.ConfirmedTransaction) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("no transactions to execute")
	}
	for i, tx := range txs {
		if tx.Description == "" {
			return "", fmt.Errorf("transaction %d: description is required", i)
		}
		if tx.RawRow == "" && tx.Checksum == "" {
			return "", fmt.Errorf("transaction %d: raw row or checksum is required", i)
		}
		if tx.Account == "" {
			return "", fmt.Errorf("transaction %d: account is required", i)
		}
	}

	sessionID, bgCtx, scope, err := s.startSession(ctx, progress.StepWriting, len(txs))
	if err != nil {
		return "", err
	}

	go s.runExecute(bgCtx, scope, sessionID, txs)

	return sessionID, nil
}

func (s *Service) runExecute(ctx context.Context, scope store.Scope, sessionID string, txs []domain.ConfirmedTransaction) {
	log := logger.FromContext(ctx)
	defer s.recoverSession(log, sessionID)

	log.Info().
		Int("transaction_count", len(txs)).
		Str("environment", scope.Environment).
		Msg("Starting import execution")

	result := &domain.ExecuteResult{}

	for i := range txs {
		tx := txs[i]
		if tx.Checksum == "" {
			tx.Checksum = dedup.Checksum(tx.RawRow)
		}

		s.writeRow(ctx, scope, &tx, result)

		_ = s.progress.Update(sessionID, func(sess *progress.Session) {
			sess.ProcessedCount++
			if sess.ProcessedCount%s.batchSize == 0 {
				sess.CurrentBatch++
			}
		})
	}

	now := time.Now()
	_ = s.progress.Update(sessionID, func(sess *progress.Session) {
		sess.Status = progress.StatusCompleted
		sess.CurrentStep = progress.StepDone
		sess.CompletedAt = &now
		sess.ProcessedCount = sess.TotalTransactions
		sess.Execute = result
	})

	log.Info().
		Int("imported", result.Imported).
		Int("failed", len(result.Failed)).
		Int("skipped", result.Skipped).
		Msg("Import execution completed")
}

// writeRow attempts a single record-store write. Failures of any flavor are
// recorded on the result and swallowed so the remaining rows still run.
func (s *Service) writeRow(ctx context.Context, scope store.Scope, tx *domain.ConfirmedTransaction, result *domain.ExecuteResult) {
	log := logger.FromContext(ctx)

	exists, err := s.txStore.HasChecksum(ctx, scope, tx.Account, tx.Checksum)
	if err != nil {
		result.Failed = append(result.Failed, domain.RowFailure{
			Description: tx.Description,
			Amount:      tx.Amount,
			Error:       fmt.Sprintf("checksum lookup: %v", err),
		})
		return
	}
	if exists {
		result.Skipped++
		log.Debug().Str("checksum", tx.Checksum).Msg("Skipping already imported transaction")
		return
	}

	pageID, err := s.records.CreateTransactionPage(ctx, tx)
	if err != nil {
		result.Failed = append(result.Failed, domain.RowFailure{
			Description: tx.Description,
			Amount:      tx.Amount,
			Error:       err.Error(),
		})
		log.Warn().Err(err).Str("description", tx.Description).Msg("Failed to write transaction to record store")
		return
	}

	// The page exists at this point, so the row counts as imported even if
	// recording the checksum fails; the miss only weakens dedup for the next
	// upload of the same statement.
	if err := s.txStore.RecordImported(ctx, scope, &store.ImportedRow{
		Checksum:   tx.Checksum,
		Account:    tx.Account,
		ExternalID: pageID,
		ImportedAt: time.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("checksum", tx.Checksum).Msg("Failed to record imported checksum")
	}

	result.Imported++
}
