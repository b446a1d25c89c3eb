package notion

import (
	"context"
	"fmt"

	"github.com/bankfeed-dev/bankfeed/internal/domain"
)

// TransactionWriter writes confirmed transactions into the transactions
// database, one page per row.
type TransactionWriter struct {
	svc        Service
	databaseID string
}

// NewTransactionWriter creates a writer over the given transactions database.
func NewTransactionWriter(svc Service, databaseID string) *TransactionWriter {
	return &TransactionWriter{svc: svc, databaseID: databaseID}
}

// CreateTransactionPage writes one confirmed row and returns the assigned
// page id.
func (w *TransactionWriter) CreateTransactionPage(ctx context.Context, tx *domain.ConfirmedTransaction) (string, error) {
	page, err := w.svc.CreatePage(ctx, w.databaseID, ConfirmedToProperties(tx))
	if err != nil {
		return "", fmt.Errorf("create transaction page: %w", err)
	}
	return string(page.ID), nil
}
