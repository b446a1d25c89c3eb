package domain

import (
	"github.com/shopspring/decimal"
)

// TransactionType classifies a confirmed row for the record store.
type TransactionType string

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// ParsedTransaction is one raw bank-statement row after a bank-specific
// transformer has normalized it. Immutable once produced; RawRow keeps the
// verbatim source payload so the checksum stays stable across re-imports.
type ParsedTransaction struct {
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account"`
	Location    string          `json:"location,omitempty"`
	Online      bool            `json:"online,omitempty"`
	RawRow      string          `json:"raw_row"`
	Checksum    string          `json:"checksum,omitempty"`
}

// RowStatus is the terminal bucket a row lands in after processing.
type RowStatus string

const (
	StatusMatched   RowStatus = "matched"
	StatusUncertain RowStatus = "uncertain"
	StatusFailed    RowStatus = "failed"
	StatusSkipped   RowStatus = "skipped"
)

// ProcessedTransaction is a parsed row annotated with its matching outcome.
type ProcessedTransaction struct {
	ParsedTransaction
	Entity          EntityMatch     `json:"entity"`
	Status          RowStatus       `json:"status"`
	SkipReason      string          `json:"skip_reason,omitempty"`
	Error           string          `json:"error,omitempty"`
	TransactionType TransactionType `json:"transaction_type,omitempty"`
}

// ConfirmedTransaction is a user-reviewed row ready for the record store.
// Entity fields are intentionally empty for transfer/income rows.
type ConfirmedTransaction struct {
	ParsedTransaction
	EntityID        string          `json:"entity_id,omitempty"`
	EntityName      string          `json:"entity_name,omitempty"`
	TransactionType TransactionType `json:"transaction_type"`
}
