// Package dedup provides content-addressed deduplication of raw import rows.
//
// The checksum is computed over the verbatim serialized source row, so two
// semantically identical but differently formatted rows are never merged,
// while byte-identical re-imports are reliably caught.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bankfeed-dev/bankfeed/internal/domain"
)

// SkipReasonDuplicate annotates rows excluded by the filter.
const SkipReasonDuplicate = "Duplicate"

// Checksum returns the SHA-256 hex digest of a verbatim raw row.
func Checksum(rawRow string) string {
	sum := sha256.Sum256([]byte(rawRow))
	return hex.EncodeToString(sum[:])
}

// Prepare fills in missing checksums from each row's RawRow. Rows that
// already carry a checksum are left untouched so re-processing identical
// input stays idempotent.
func Prepare(batch []domain.ParsedTransaction) []domain.ParsedTransaction {
	out := make([]domain.ParsedTransaction, len(batch))
	for i, tx := range batch {
		if tx.Checksum == "" {
			tx.Checksum = Checksum(tx.RawRow)
		}
		out[i] = tx
	}
	return out
}

// Filter splits a batch into rows not yet stored and rows excluded as
// duplicates. A row is a duplicate if its checksum appears in the stored set
// or earlier in the same batch. Pure function, no side effects.
func Filter(batch []domain.ParsedTransaction, stored map[string]bool) (fresh []domain.ParsedTransaction, skipped []domain.ProcessedTransaction) {
	seen := make(map[string]bool, len(batch))
	for _, tx := range batch {
		if stored[tx.Checksum] || seen[tx.Checksum] {
			skipped = append(skipped, domain.ProcessedTransaction{
				ParsedTransaction: tx,
				Entity:            domain.EntityMatch{MatchType: domain.MatchNone},
				Status:            domain.StatusSkipped,
				SkipReason:        SkipReasonDuplicate,
			})
			continue
		}
		seen[tx.Checksum] = true
		fresh = append(fresh, tx)
	}
	return fresh, skipped
}
