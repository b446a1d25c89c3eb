package dedup_test

import (
	"testing"

	"github.com/bankfeed-dev/bankfeed/internal/dedup"
	"github.com/bankfeed-dev/bankfeed/internal/domain"
)

func row(rawRow string) domain.ParsedTransaction {
	return domain.ParsedTransaction{
		Description: "TEST " + rawRow,
		Account:     "everyday",
		RawRow:      rawRow,
	}
}

func TestChecksumDeterministic(t *testing.T) {
	a := dedup.Checksum("2024-01-02,COLES,12.50")
	b := dedup.Checksum("2024-01-02,COLES,12.50")
	if a != b {
		t.Errorf("identical rows produced different checksums: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}

	// Formatting differences must produce distinct checksums.
	c := dedup.Checksum("2024-01-02, COLES, 12.50")
	if a == c {
		t.Error("differently formatted rows must not share a checksum")
	}
}

func TestPrepare(t *testing.T) {
	batch := dedup.Prepare([]domain.ParsedTransaction{row("r1"), {RawRow: "r2", Checksum: "precomputed"}})

	if batch[0].Checksum != dedup.Checksum("r1") {
		t.Errorf("expected checksum filled from raw row, got %s", batch[0].Checksum)
	}
	if batch[1].Checksum != "precomputed" {
		t.Errorf("existing checksum must be preserved, got %s", batch[1].Checksum)
	}
}

func TestFilter(t *testing.T) {
	t.Run("SplitsStoredDuplicates", func(t *testing.T) {
		batch := dedup.Prepare([]domain.ParsedTransaction{row("r1"), row("r2")})
		stored := map[string]bool{dedup.Checksum("r1"): true}

		fresh, skipped := dedup.Filter(batch, stored)
		if len(fresh) != 1 || fresh[0].RawRow != "r2" {
			t.Fatalf("expected only r2 fresh, got %v", fresh)
		}
		if len(skipped) != 1 {
			t.Fatalf("expected one skipped row, got %d", len(skipped))
		}
		if skipped[0].Status != domain.StatusSkipped {
			t.Errorf("expected skipped status, got %s", skipped[0].Status)
		}
		if skipped[0].SkipReason != dedup.SkipReasonDuplicate {
			t.Errorf("expected Duplicate skip reason, got %q", skipped[0].SkipReason)
		}
	})

	t.Run("CatchesDuplicatesWithinBatch", func(t *testing.T) {
		batch := dedup.Prepare([]domain.ParsedTransaction{row("r1"), row("r1")})

		fresh, skipped := dedup.Filter(batch, nil)
		if len(fresh) != 1 {
			t.Errorf("expected one fresh row, got %d", len(fresh))
		}
		if len(skipped) != 1 {
			t.Errorf("expected one skipped row, got %d", len(skipped))
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		// Re-importing the same batch after everything is stored yields zero
		// fresh rows.
		batch := dedup.Prepare([]domain.ParsedTransaction{row("r1"), row("r2"), row("r3")})
		stored := make(map[string]bool)
		for _, tx := range batch {
			stored[tx.Checksum] = true
		}

		fresh, skipped := dedup.Filter(batch, stored)
		if len(fresh) != 0 {
			t.Errorf("expected no fresh rows on re-import, got %d", len(fresh))
		}
		if len(skipped) != len(batch) {
			t.Errorf("expected all %d rows skipped, got %d", len(batch), len(skipped))
		}
	})
}
