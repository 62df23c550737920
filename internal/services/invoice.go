package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// Installment count bounds for a split purchase.
const (
	MinInstallments = 2
	MaxInstallments = 24
)

var (
	ErrInvoiceRealized    = errors.New("invoice already settled")
	ErrInvoiceNotRealized = errors.New("invoice not settled")
	ErrEntryFrozen        = errors.New("entry belongs to a settled invoice")
	ErrNotAnInvoice       = errors.New("entry is not an invoice")
	ErrInstallmentCount   = errors.New("installment count out of range")
)

// InvoiceService allocates card purchases onto monthly invoices and keeps
// invoice totals consistent with their children.
type InvoiceService struct {
	store *store.Store
	log   *zap.Logger
}

func NewInvoiceService(st *store.Store, log *zap.Logger) *InvoiceService {
	return &InvoiceService{store: st, log: log}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths moves t forward by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	target := first.AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, t.Location())
}

// InvoiceDueDate computes the due date of the invoice a purchase rolls into.
// A purchase on or before the closing day belongs to the cycle closing in the
// purchase month, otherwise to the next one. The due date lands in the
// closing month when the due day comes after the closing day, otherwise in
// the month after. The day is clamped to the month's length.
func InvoiceDueDate(purchase time.Time, closingDay, dueDay int) time.Time {
	closing := time.Date(purchase.Year(), purchase.Month(), 1, 0, 0, 0, 0, purchase.Location())
	if purchase.Day() > closingDay {
		closing = closing.AddDate(0, 1, 0)
	}
	due := closing
	if dueDay <= closingDay {
		due = due.AddDate(0, 1, 0)
	}
	day := dueDay
	if last := daysIn(due.Year(), due.Month()); day > last {
		day = last
	}
	return time.Date(due.Year(), due.Month(), day, 0, 0, 0, 0, purchase.Location())
}

// InvoiceDescription is the canonical label of a card's monthly invoice.
func InvoiceDescription(cardName string, due time.Time) string {
	return fmt.Sprintf("Fatura %s - %02d/%04d", cardName, int(due.Month()), due.Year())
}

// SplitInstallments divides a total into n cent-exact installments. The
// remainder cents go to the earliest installments, one cent each, so the
// parts always sum back to the total.
func SplitInstallments(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < MinInstallments || n > MaxInstallments {
		return nil, ErrInstallmentCount
	}
	cents := total.Shift(2).IntPart()
	if cents <= 0 {
		return nil, fmt.Errorf("total must be positive")
	}
	base := cents / int64(n)
	rem := cents % int64(n)
	out := make([]decimal.Decimal, n)
	for i := range out {
		c := base
		if int64(i) < rem {
			c++
		}
		out[i] = decimal.New(c, -2)
	}
	return out, nil
}

// EnsureInvoice finds the invoice of a card for the month the due date falls
// in, creating it with a zero amount when it does not exist yet. Runs on
// whatever store it is handed so callers can keep it inside a transaction.
func (s *InvoiceService) EnsureInvoice(ctx context.Context, st *store.Store, card *models.Card, due time.Time) (*models.LedgerEntry, error) {
	inv, err := st.FindInvoice(ctx, card.UserID, card.ID, due.Year(), int(due.Month()))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	inv = &models.LedgerEntry{
		UserID:        card.UserID,
		Kind:          models.KindExpense,
		Description:   InvoiceDescription(card.Name, due),
		Amount:        decimal.Zero,
		ScheduledDate: due,
		CardID:        &card.ID,
		IsInvoice:     true,
	}
	if err := st.CreateEntry(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// RecomputeInvoice rewrites the invoice amount as the sum of its children.
// A settled invoice is left untouched.
func (s *InvoiceService) RecomputeInvoice(ctx context.Context, st *store.Store, userID uuid.UUID, invoiceID int64) error {
	inv, err := st.GetEntry(ctx, userID, invoiceID)
	if err != nil {
		return err
	}
	if !inv.IsInvoice || inv.Realized {
		return nil
	}
	sum, err := st.SumInvoiceChildren(ctx, invoiceID)
	if err != nil {
		return err
	}
	return st.SetInvoiceAmount(ctx, invoiceID, sum)
}

// PurchaseInput describes a card purchase to allocate.
type PurchaseInput struct {
	CardID       int64
	Description  string
	Amount       decimal.Decimal
	PurchaseDate time.Time
	CategoryID   *int64
	CardCategory *string
	Installments int
}

// CreatePurchase records a single card purchase, attaching it to the invoice
// its purchase date maps to and recomputing that invoice's total.
func (s *InvoiceService) CreatePurchase(ctx context.Context, userID uuid.UUID, in PurchaseInput) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.store.WithTx(ctx, func(st *store.Store) error {
		card, err := st.GetCard(ctx, userID, in.CardID)
		if err != nil {
			return err
		}
		due := InvoiceDueDate(in.PurchaseDate, card.ClosingDay, card.DueDay)
		inv, err := s.EnsureInvoice(ctx, st, card, due)
		if err != nil {
			return err
		}
		if inv.Realized {
			return ErrInvoiceRealized
		}
		purchaseDate := in.PurchaseDate
		entry = &models.LedgerEntry{
			UserID:        userID,
			Kind:          models.KindExpense,
			Description:   in.Description,
			Amount:        in.Amount,
			ScheduledDate: due,
			CategoryID:    in.CategoryID,
			CardID:        &card.ID,
			CardCategory:  in.CardCategory,
			PurchaseDate:  &purchaseDate,
			InvoiceID:     &inv.ID,
		}
		if err := st.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return s.RecomputeInvoice(ctx, st, userID, inv.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("card purchase recorded",
		zap.Int64("entry_id", entry.ID),
		zap.Int64("card_id", in.CardID))
	return entry, nil
}

// SplitPurchase records a purchase paid in installments. Each installment
// becomes its own entry on the invoice one month after the previous, the
// amounts follow the cent-exact split, and all rows share a group id equal to
// the id of the first installment.
func (s *InvoiceService) SplitPurchase(ctx context.Context, userID uuid.UUID, in PurchaseInput) ([]*models.LedgerEntry, error) {
	amounts, err := SplitInstallments(in.Amount, in.Installments)
	if err != nil {
		return nil, err
	}

	var created []*models.LedgerEntry
	err = s.store.WithTx(ctx, func(st *store.Store) error {
		card, err := st.GetCard(ctx, userID, in.CardID)
		if err != nil {
			return err
		}
		firstDue := InvoiceDueDate(in.PurchaseDate, card.ClosingDay, card.DueDay)
		count := in.Installments
		purchaseDate := in.PurchaseDate
		touched := make(map[int64]struct{})

		var groupID int64
		for i, amount := range amounts {
			due := AddMonths(firstDue, i)
			inv, err := s.EnsureInvoice(ctx, st, card, due)
			if err != nil {
				return err
			}
			if inv.Realized {
				return ErrInvoiceRealized
			}
			idx := i + 1
			entry := &models.LedgerEntry{
				UserID:           userID,
				Kind:             models.KindExpense,
				Description:      fmt.Sprintf("%s (%d/%d)", in.Description, idx, count),
				Amount:           amount,
				ScheduledDate:    due,
				CategoryID:       in.CategoryID,
				CardID:           &card.ID,
				CardCategory:     in.CardCategory,
				PurchaseDate:     &purchaseDate,
				InvoiceID:        &inv.ID,
				Installment:      true,
				InstallmentIndex: &idx,
				InstallmentCount: &count,
			}
			if err := st.CreateEntry(ctx, entry); err != nil {
				return err
			}
			if i == 0 {
				groupID = entry.ID
			}
			entry.InstallmentGroup = &groupID
			if err := st.SetInstallmentGroup(ctx, entry.ID, groupID); err != nil {
				return err
			}
			created = append(created, entry)
			touched[inv.ID] = struct{}{}
		}
		for invID := range touched {
			if err := s.RecomputeInvoice(ctx, st, userID, invID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("split purchase recorded",
		zap.Int("installments", in.Installments),
		zap.Int64("group_id", *created[0].InstallmentGroup))
	return created, nil
}

// CanEditEntry reports whether the entry may still be changed or removed.
// A settled invoice and everything under it is frozen.
func (s *InvoiceService) CanEditEntry(ctx context.Context, st *store.Store, e *models.LedgerEntry) error {
	if e.IsInvoice && e.Realized {
		return ErrInvoiceRealized
	}
	if e.InvoiceID != nil {
		inv, err := st.GetEntry(ctx, e.UserID, *e.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Realized {
			return ErrEntryFrozen
		}
	}
	return nil
}

// deleteWholeGroup reports whether a delete should take the entry's whole
// installment group with it. Callers opt in; a lone installment is removed
// on its own otherwise.
func deleteWholeGroup(entry *models.LedgerEntry, deleteGroup bool) bool {
	return deleteGroup && entry.InstallmentGroup != nil
}

// DeleteCardEntry removes a card purchase after the edit check and keeps the
// invoice total in step. With deleteGroup set, deleting any installment
// removes the whole group; without it only the targeted installment goes.
func (s *InvoiceService) DeleteCardEntry(ctx context.Context, userID uuid.UUID, entryID int64, deleteGroup bool) error {
	return s.store.WithTx(ctx, func(st *store.Store) error {
		entry, err := st.GetEntry(ctx, userID, entryID)
		if err != nil {
			return err
		}
		if err := s.CanEditEntry(ctx, st, entry); err != nil {
			return err
		}

		touched := make(map[int64]struct{})
		if deleteWholeGroup(entry, deleteGroup) {
			group, err := st.ListInstallmentGroup(ctx, userID, *entry.InstallmentGroup)
			if err != nil {
				return err
			}
			for _, g := range group {
				if err := s.CanEditEntry(ctx, st, g); err != nil {
					return err
				}
				if g.InvoiceID != nil {
					touched[*g.InvoiceID] = struct{}{}
				}
			}
			if _, err := st.DeleteInstallmentGroup(ctx, userID, *entry.InstallmentGroup); err != nil {
				return err
			}
		} else {
			if entry.InvoiceID != nil {
				touched[*entry.InvoiceID] = struct{}{}
			}
			if err := st.DeleteEntry(ctx, userID, entryID); err != nil {
				return err
			}
		}

		for invID := range touched {
			if err := s.RecomputeInvoice(ctx, st, userID, invID); err != nil {
				return err
			}
		}
		return nil
	})
}

// PayInvoice settles an invoice: the invoice row and every child get realized
// with the given date, atomically.
func (s *InvoiceService) PayInvoice(ctx context.Context, userID uuid.UUID, invoiceID int64, date time.Time) error {
	return s.store.WithTx(ctx, func(st *store.Store) error {
		inv, err := st.GetEntry(ctx, userID, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsInvoice {
			return ErrNotAnInvoice
		}
		if inv.Realized {
			return ErrInvoiceRealized
		}
		if err := st.SetRealized(ctx, userID, invoiceID, true, &date); err != nil {
			return err
		}
		return st.SetChildrenRealized(ctx, invoiceID, true, &date)
	})
}

// UnpayInvoice reverts a settlement. Every child is unmarked along with the
// invoice, including children that had been realized on their own before the
// invoice was paid.
func (s *InvoiceService) UnpayInvoice(ctx context.Context, userID uuid.UUID, invoiceID int64) error {
	return s.store.WithTx(ctx, func(st *store.Store) error {
		inv, err := st.GetEntry(ctx, userID, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsInvoice {
			return ErrNotAnInvoice
		}
		if !inv.Realized {
			return ErrInvoiceNotRealized
		}
		if err := st.SetRealized(ctx, userID, invoiceID, false, nil); err != nil {
			return err
		}
		return st.SetChildrenRealized(ctx, invoiceID, false, nil)
	})
}
