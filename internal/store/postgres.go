// Package store provides the pgx-backed relational cache: checksum
// deduplication rows, entity aliases, and the append-only AI usage ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bankfeed-dev/bankfeed/internal/ai"
)

// Postgres implements TransactionStore, AliasStore and ai.Ledger.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool for the given URL. The URL is
// normalized the way docker-compose style DSNs usually need: postgresql://
// becomes postgres:// and sslmode defaults to disable.
func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.HasPrefix(databaseURL, "postgresql:") {
		databaseURL = "postgres" + databaseURL[len("postgresql"):]
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		sep := "?"
		if strings.Contains(databaseURL, "?") {
			sep = "&"
		}
		databaseURL += sep + "sslmode=disable"
	}

	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config)
	return &Postgres{db: db}, nil
}

// Init verifies connectivity and bootstraps the schema.
func (p *Postgres) Init(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS imported_transactions (
			id BIGSERIAL PRIMARY KEY,
			environment VARCHAR(64) NOT NULL,
			account VARCHAR(128) NOT NULL,
			checksum CHAR(64) NOT NULL,
			external_id VARCHAR(128),
			imported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (environment, account, checksum)
		);

		CREATE TABLE IF NOT EXISTS entity_aliases (
			id BIGSERIAL PRIMARY KEY,
			environment VARCHAR(64) NOT NULL,
			alias VARCHAR(128) NOT NULL,
			canonical_name VARCHAR(256) NOT NULL,
			UNIQUE (environment, alias)
		);

		CREATE TABLE IF NOT EXISTS ai_usage_ledger (
			id BIGSERIAL PRIMARY KEY,
			description TEXT NOT NULL,
			entity_name VARCHAR(256),
			category VARCHAR(128),
			input_tokens BIGINT NOT NULL DEFAULT 0,
			output_tokens BIGINT NOT NULL DEFAULT 0,
			cost_usd NUMERIC(12,6) NOT NULL DEFAULT 0,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			import_batch_id VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// ChecksumsForAccount implements TransactionStore.
func (p *Postgres) ChecksumsForAccount(ctx context.Context, scope Scope, account string) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT checksum FROM imported_transactions WHERE environment = $1 AND account = $2`,
		scope.environment(), account)
	if err != nil {
		return nil, fmt.Errorf("store: query checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var checksum string
		if err := rows.Scan(&checksum); err != nil {
			return nil, fmt.Errorf("store: scan checksum: %w", err)
		}
		out[strings.TrimSpace(checksum)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate checksums: %w", err)
	}
	return out, nil
}

// HasChecksum implements TransactionStore.
func (p *Postgres) HasChecksum(ctx context.Context, scope Scope, account, checksum string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM imported_transactions
			WHERE environment = $1 AND account = $2 AND checksum = $3
		)`,
		scope.environment(), account, checksum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check checksum: %w", err)
	}
	return exists, nil
}

// RecordImported implements TransactionStore.
func (p *Postgres) RecordImported(ctx context.Context, scope Scope, row *ImportedRow) error {
	importedAt := row.ImportedAt
	if importedAt.IsZero() {
		importedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO imported_transactions (environment, account, checksum, external_id, imported_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (environment, account, checksum) DO NOTHING`,
		scope.environment(), row.Account, row.Checksum, row.ExternalID, importedAt)
	if err != nil {
		return fmt.Errorf("store: record imported transaction: %w", err)
	}
	return nil
}

// ListAliases implements AliasStore.
func (p *Postgres) ListAliases(ctx context.Context, scope Scope) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT alias, canonical_name FROM entity_aliases WHERE environment = $1`,
		scope.environment())
	if err != nil {
		return nil, fmt.Errorf("store: query aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var alias, canonical string
		if err := rows.Scan(&alias, &canonical); err != nil {
			return nil, fmt.Errorf("store: scan alias: %w", err)
		}
		out[alias] = canonical
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate aliases: %w", err)
	}
	return out, nil
}

// AppendUsage implements ai.Ledger.
func (p *Postgres) AppendUsage(ctx context.Context, rec *ai.UsageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO ai_usage_ledger
			(description, entity_name, category, input_tokens, output_tokens, cost_usd, cached, import_batch_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.Description, rec.EntityName, rec.Category,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD,
		rec.Cached, rec.ImportBatchID, createdAt)
	if err != nil {
		return fmt.Errorf("store: append usage ledger row: %w", err)
	}
	return nil
}

var (
	_ TransactionStore = (*Postgres)(nil)
	_ AliasStore       = (*Postgres)(nil)
	_ ai.Ledger        = (*Postgres)(nil)
)
