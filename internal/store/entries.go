package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/freecash-dev/freecash-api/internal/models"
)

const entryColumns = `id, uuid, user_id, kind, description, amount::text,
	scheduled_date, realized, realized_date, category_id, payment_method_id,
	card_id, card_category, purchase_date, is_invoice, invoice_id,
	installment, installment_index, installment_count, installment_group,
	subscription_id, is_legacy, origin_year, origin_month, origin_label,
	created_at, updated_at`

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var amount string
	err := row.Scan(
		&e.ID, &e.UUID, &e.UserID, &e.Kind, &e.Description, &amount,
		&e.ScheduledDate, &e.Realized, &e.RealizedDate, &e.CategoryID,
		&e.PaymentMethodID, &e.CardID, &e.CardCategory, &e.PurchaseDate,
		&e.IsInvoice, &e.InvoiceID, &e.Installment, &e.InstallmentIndex,
		&e.InstallmentCount, &e.InstallmentGroup, &e.SubscriptionID,
		&e.Legacy, &e.OriginYear, &e.OriginMonth, &e.OriginLabel,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()
	var out []*models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateEntry inserts the entry and fills ID, CreatedAt and UpdatedAt. A zero
// UUID is replaced with a fresh one.
func (s *Store) CreateEntry(ctx context.Context, e *models.LedgerEntry) error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			uuid, user_id, kind, description, amount, scheduled_date,
			realized, realized_date, category_id, payment_method_id, card_id,
			card_category, purchase_date, is_invoice, invoice_id, installment,
			installment_index, installment_count, installment_group,
			subscription_id, is_legacy, origin_year, origin_month, origin_label
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		RETURNING id, created_at, updated_at
	`,
		e.UUID, e.UserID, e.Kind, e.Description, e.Amount.StringFixed(2),
		e.ScheduledDate, e.Realized, e.RealizedDate, e.CategoryID,
		e.PaymentMethodID, e.CardID, e.CardCategory, e.PurchaseDate,
		e.IsInvoice, e.InvoiceID, e.Installment, e.InstallmentIndex,
		e.InstallmentCount, e.InstallmentGroup, e.SubscriptionID, e.Legacy,
		e.OriginYear, e.OriginMonth, e.OriginLabel,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return s.TouchConfig(ctx, e.UserID)
}

// UpdateEntry rewrites the mutable fields of an entry owned by the user.
func (s *Store) UpdateEntry(ctx context.Context, e *models.LedgerEntry) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ledger_entries SET
			kind = $1, description = $2, amount = $3, scheduled_date = $4,
			realized = $5, realized_date = $6, category_id = $7,
			payment_method_id = $8, card_id = $9, card_category = $10,
			purchase_date = $11, invoice_id = $12, origin_label = $13,
			updated_at = now()
		WHERE id = $14 AND user_id = $15
	`,
		e.Kind, e.Description, e.Amount.StringFixed(2), e.ScheduledDate,
		e.Realized, e.RealizedDate, e.CategoryID, e.PaymentMethodID, e.CardID,
		e.CardCategory, e.PurchaseDate, e.InvoiceID, e.OriginLabel,
		e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, e.UserID)
}

func (s *Store) GetEntry(ctx context.Context, userID uuid.UUID, id int64) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *Store) GetEntryByUUID(ctx context.Context, userID, uid uuid.UUID) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE uuid = $1 AND user_id = $2
	`, uid, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by uuid: %w", err)
	}
	return e, nil
}

// EntryFilter narrows ListEntries. Zero values mean "no restriction".
type EntryFilter struct {
	Kind      models.EntryKind
	Year      int
	Month     int
	Realized  *bool
	CardID    *int64
	IsInvoice *bool
	Limit     int
	Offset    int
}

// ListEntries returns the user's entries newest first, plus the total count
// matching the filter before pagination.
func (s *Store) ListEntries(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]*models.LedgerEntry, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Kind != "" {
		where = append(where, "kind = "+arg(f.Kind))
	}
	if f.Year > 0 {
		where = append(where, "EXTRACT(YEAR FROM scheduled_date) = "+arg(f.Year))
	}
	if f.Month > 0 {
		where = append(where, "EXTRACT(MONTH FROM scheduled_date) = "+arg(f.Month))
	}
	if f.Realized != nil {
		where = append(where, "realized = "+arg(*f.Realized))
	}
	if f.CardID != nil {
		where = append(where, "card_id = "+arg(*f.CardID))
	}
	if f.IsInvoice != nil {
		where = append(where, "is_invoice = "+arg(*f.IsInvoice))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE "+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := "SELECT " + entryColumns + " FROM ledger_entries WHERE " + cond +
		" ORDER BY scheduled_date DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return entries, total, nil
}

// FindInvoice locates the invoice entry of a card in a given due month.
func (s *Store) FindInvoice(ctx context.Context, userID uuid.UUID, cardID int64, year, month int) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1 AND card_id = $2 AND is_invoice = true
		  AND EXTRACT(YEAR FROM scheduled_date) = $3
		  AND EXTRACT(MONTH FROM scheduled_date) = $4
	`, userID, cardID, year, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return e, nil
}

// ListInvoiceChildren returns the purchases rolled into an invoice.
func (s *Store) ListInvoiceChildren(ctx context.Context, invoiceID int64) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE invoice_id = $1 AND is_invoice = false
		ORDER BY scheduled_date, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice children: %w", err)
	}
	return collectEntries(rows)
}

// SumInvoiceChildren totals the non-invoice entries linked to an invoice.
func (s *Store) SumInvoiceChildren(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum string
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text FROM ledger_entries
		WHERE invoice_id = $1 AND is_invoice = false
	`, invoiceID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum invoice children: %w", err)
	}
	d, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse invoice sum: %w", err)
	}
	return d, nil
}

// SetInvoiceAmount overwrites an invoice's amount after its children changed.
func (s *Store) SetInvoiceAmount(ctx context.Context, invoiceID int64, amount decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ledger_entries SET amount = $1, updated_at = now()
		WHERE id = $2 AND is_invoice = true
	`, amount.StringFixed(2), invoiceID)
	if err != nil {
		return fmt.Errorf("set invoice amount: %w", err)
	}
	return nil
}

// SetRealized flips realization state for one entry.
func (s *Store) SetRealized(ctx context.Context, userID uuid.UUID, id int64, realized bool, date *time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ledger_entries
		SET realized = $1, realized_date = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4
	`, realized, date, id, userID)
	if err != nil {
		return fmt.Errorf("set realized: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, userID)
}

// SetChildrenRealized flips realization state for every purchase under an
// invoice in one statement.
func (s *Store) SetChildrenRealized(ctx context.Context, invoiceID int64, realized bool, date *time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ledger_entries
		SET realized = $1, realized_date = $2, updated_at = now()
		WHERE invoice_id = $3 AND is_invoice = false
	`, realized, date, invoiceID)
	if err != nil {
		return fmt.Errorf("set children realized: %w", err)
	}
	return nil
}

// ListInstallmentGroup returns every installment of a split purchase.
func (s *Store) ListInstallmentGroup(ctx context.Context, userID uuid.UUID, groupID int64) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1 AND installment_group = $2
		ORDER BY installment_index
	`, userID, groupID)
	if err != nil {
		return nil, fmt.Errorf("list installment group: %w", err)
	}
	return collectEntries(rows)
}

// SetInstallmentGroup stamps the group id on one entry. The group id is the
// id of the first installment created.
func (s *Store) SetInstallmentGroup(ctx context.Context, entryID, groupID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ledger_entries SET installment_group = $1 WHERE id = $2
	`, groupID, entryID)
	if err != nil {
		return fmt.Errorf("set installment group: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, userID uuid.UUID, id int64) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM ledger_entries WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, userID)
}

// DeleteInstallmentGroup removes every installment of a split purchase and
// reports how many rows went away.
func (s *Store) DeleteInstallmentGroup(ctx context.Context, userID uuid.UUID, groupID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM ledger_entries WHERE user_id = $1 AND installment_group = $2
	`, userID, groupID)
	if err != nil {
		return 0, fmt.Errorf("delete installment group: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if err := s.TouchConfig(ctx, userID); err != nil {
			return 0, err
		}
	}
	return tag.RowsAffected(), nil
}

// FindEntryByNaturalKey matches on the fields a re-imported spreadsheet row
// would reproduce exactly.
func (s *Store) FindEntryByNaturalKey(ctx context.Context, userID uuid.UUID, kind models.EntryKind, description string, amount decimal.Decimal, dueDate time.Time) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1 AND kind = $2 AND description = $3
		  AND amount = $4 AND scheduled_date = $5
		ORDER BY id LIMIT 1
	`, userID, kind, description, amount.StringFixed(2), dueDate))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry by natural key: %w", err)
	}
	return e, nil
}

// FindEntryByProvenance matches a legacy row by its spreadsheet origin.
func (s *Store) FindEntryByProvenance(ctx context.Context, userID uuid.UUID, year, month int, label string) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1 AND is_legacy = true
		  AND origin_year = $2 AND origin_month = $3 AND origin_label = $4
		ORDER BY id LIMIT 1
	`, userID, year, month, label))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry by provenance: %w", err)
	}
	return e, nil
}

// FindEntryByReportKey matches a row from a monthly report export. The
// description comparison is case-insensitive.
func (s *Store) FindEntryByReportKey(ctx context.Context, userID uuid.UUID, date time.Time, description string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1 AND scheduled_date = $2
		  AND upper(description) = upper($3) AND amount = $4
		ORDER BY id LIMIT 1
	`, userID, date, description, amount.StringFixed(2)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry by report key: %w", err)
	}
	return e, nil
}

// ListUserEntries returns every entry the user owns, invoice rows first so a
// sequential reader can resolve invoice links in one pass.
func (s *Store) ListUserEntries(ctx context.Context, userID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1
		ORDER BY is_invoice DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *Store) DeleteUserEntries(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM ledger_entries WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user entries: %w", err)
	}
	return nil
}
