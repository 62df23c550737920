package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Statement import statuses.
const (
	StatementPending   = "pending"
	StatementProcessed = "processed"
	StatementFailed    = "failed"
)

// Statement line statuses during reconciliation.
const (
	LinePending   = "pending"
	LineConfirmed = "confirmed"
	LineDiscarded = "discarded"
)

// StatementImport tracks one uploaded bank statement and the outcome of
// parsing it.
type StatementImport struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Filename   string    `json:"filename"`
	Bank       string    `json:"bank"`
	Status     string    `json:"status"`
	LinesFound int       `json:"lines_found"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatementLine is one staged movement extracted from a statement, waiting to
// be confirmed into a LedgerEntry or discarded.
type StatementLine struct {
	ID          int64           `json:"id"`
	ImportID    int64           `json:"import_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        EntryKind       `json:"kind"`
	Status      string          `json:"status"`
	EntryID     *int64          `json:"entry_id,omitempty"`
}

// ParsedLine is a movement extracted from statement text before it is staged.
type ParsedLine struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        EntryKind       `json:"kind"`
}
