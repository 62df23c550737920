package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind is the nature of a ledger entry. The single-letter codes are kept
// for compatibility with backups produced by earlier versions.
type EntryKind string

const (
	KindIncome     EntryKind = "R"
	KindExpense    EntryKind = "D"
	KindInvestment EntryKind = "I"
)

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	return k == KindIncome || k == KindExpense || k == KindInvestment
}

// LedgerEntry is a single receivable, payable or investment movement. It
// covers both scheduled entries (ScheduledDate) and realized ones
// (Realized + RealizedDate), card purchases, installments of a split
// purchase, and card invoices (IsInvoice rows aggregating their children).
type LedgerEntry struct {
	ID          int64           `json:"id"`
	UUID        uuid.UUID       `json:"uuid"`
	UserID      uuid.UUID       `json:"user_id"`
	Kind        EntryKind       `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`

	ScheduledDate time.Time  `json:"scheduled_date"`
	Realized      bool       `json:"realized"`
	RealizedDate  *time.Time `json:"realized_date,omitempty"`

	CategoryID      *int64 `json:"category_id,omitempty"`
	PaymentMethodID *int64 `json:"payment_method_id,omitempty"`

	// Card purchase fields. CardCategory is the free-form merchant category
	// shown on card statements.
	CardID       *int64     `json:"card_id,omitempty"`
	CardCategory *string    `json:"card_category,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`

	// Invoice linkage. An invoice row has IsInvoice set and never references
	// another invoice; a card purchase references the invoice it rolls into.
	IsInvoice bool   `json:"is_invoice"`
	InvoiceID *int64 `json:"invoice_id,omitempty"`

	// Installment fields, set only for rows created by a split purchase.
	// Rows of one purchase share InstallmentGroup and their amounts sum to
	// the purchase total to the cent.
	Installment      bool   `json:"installment"`
	InstallmentIndex *int   `json:"installment_index,omitempty"`
	InstallmentCount *int   `json:"installment_count,omitempty"`
	InstallmentGroup *int64 `json:"installment_group,omitempty"`

	SubscriptionID *int64 `json:"subscription_id,omitempty"`

	// Provenance of rows ingested from the legacy spreadsheet.
	Legacy      bool    `json:"is_legacy"`
	OriginYear  *int    `json:"origin_year,omitempty"`
	OriginMonth *int    `json:"origin_month,omitempty"`
	OriginLabel *string `json:"origin_label,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overdue reports whether the entry passed its scheduled date without being
// realized.
func (e *LedgerEntry) Overdue(today time.Time) bool {
	return !e.Realized && e.ScheduledDate.Before(today)
}

// Category is a per-user label for entries, unique per (user, name).
type Category struct {
	ID        int64     `json:"id"`
	UUID      uuid.UUID `json:"uuid"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Kind      EntryKind `json:"kind"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentMethod is a per-user payment instrument (Pix, Boleto, debit...),
// unique per (user, name).
type PaymentMethod struct {
	ID        int64     `json:"id"`
	UUID      uuid.UUID `json:"uuid"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Card is a credit card whose closing and due days drive invoice allocation.
type Card struct {
	ID         int64            `json:"id"`
	UUID       uuid.UUID        `json:"uuid"`
	UserID     uuid.UUID        `json:"user_id"`
	Name       string           `json:"name"`
	Brand      string           `json:"brand"`
	LastDigits string           `json:"last_digits"`
	Limit      *decimal.Decimal `json:"limit,omitempty"`
	ClosingDay int              `json:"closing_day"`
	DueDay     int              `json:"due_day"`
	Active     bool             `json:"active"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Subscription is a recurring charge. Each generation cycle materializes one
// LedgerEntry and advances NextGeneration by one calendar month.
type Subscription struct {
	ID              int64           `json:"id"`
	UUID            uuid.UUID       `json:"uuid"`
	UserID          uuid.UUID       `json:"user_id"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Kind            EntryKind       `json:"kind"`
	DueDay          int             `json:"due_day"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	PaymentMethodID *int64          `json:"payment_method_id,omitempty"`
	CardID          *int64          `json:"card_id,omitempty"`
	Active          bool            `json:"active"`
	NextGeneration  time.Time       `json:"next_generation"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// UserConfig is the per-user singleton settings row. Its UpdatedAt is touched
// on every successful mutation of the user's owned entities.
type UserConfig struct {
	ID              int64      `json:"id"`
	UUID            uuid.UUID  `json:"uuid"`
	UserID          uuid.UUID  `json:"user_id"`
	DefaultCurrency string     `json:"default_currency"`
	LastExportAt    *time.Time `json:"last_export_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Import source kinds recorded in ImportLog.
const (
	ImportSourceBackup    = "backup"
	ImportSourceLegacy    = "legacy"
	ImportSourceReport    = "report"
	ImportSourceStatement = "statement"
)

// ImportLog is an append-only record of an import attempt.
type ImportLog struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Source    string    `json:"source"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
