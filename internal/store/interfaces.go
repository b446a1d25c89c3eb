package store

import (
	"context"
	"time"
)

// ImportedRow records one transaction written to the record store, keyed by
// checksum for deduplication on later imports.
type ImportedRow struct {
	Checksum   string
	Account    string
	ExternalID string
	ImportedAt time.Time
}

// TransactionStore is the relational cache consulted by the import pipeline.
type TransactionStore interface {
	// ChecksumsForAccount returns the checksums of all transactions already
	// stored for the account within the scope's environment.
	ChecksumsForAccount(ctx context.Context, scope Scope, account string) (map[string]bool, error)

	// HasChecksum reports whether a single checksum is already stored.
	HasChecksum(ctx context.Context, scope Scope, account, checksum string) (bool, error)

	// RecordImported stores a checksum row after a successful record-store
	// write. Inserting an existing checksum is a no-op.
	RecordImported(ctx context.Context, scope Scope, row *ImportedRow) error
}

// AliasStore provides the alias table feeding the entity matcher.
type AliasStore interface {
	// ListAliases returns alias substring -> canonical entity name.
	ListAliases(ctx context.Context, scope Scope) (map[string]string, error)
}
