package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// SubscriptionService materializes recurring charges into ledger entries.
type SubscriptionService struct {
	store    *store.Store
	invoices *InvoiceService
	log      *zap.Logger
}

func NewSubscriptionService(st *store.Store, invoices *InvoiceService, log *zap.Logger) *SubscriptionService {
	return &SubscriptionService{store: st, invoices: invoices, log: log}
}

// SubscriptionDueDate places a subscription's due day inside the cycle
// month. When the configured day does not exist in that month the charge
// falls back to day min(dueDay, 28).
func SubscriptionDueDate(cycle time.Time, dueDay int) time.Time {
	if dueDay < 1 {
		dueDay = 1
	}
	day := dueDay
	if day > daysIn(cycle.Year(), cycle.Month()) {
		day = dueDay
		if day > 28 {
			day = 28
		}
	}
	return time.Date(cycle.Year(), cycle.Month(), day, 0, 0, 0, 0, cycle.Location())
}

// generateEntry creates the entry for one cycle of a subscription and
// advances its next generation date by exactly one month. Card subscriptions
// land on the invoice their charge date maps to, like any card purchase.
func (s *SubscriptionService) generateEntry(ctx context.Context, st *store.Store, sub *models.Subscription) (*models.LedgerEntry, error) {
	charge := SubscriptionDueDate(sub.NextGeneration, sub.DueDay)

	entry := &models.LedgerEntry{
		UserID:          sub.UserID,
		Kind:            sub.Kind,
		Description:     sub.Description,
		Amount:          sub.Amount,
		ScheduledDate:   charge,
		CategoryID:      sub.CategoryID,
		PaymentMethodID: sub.PaymentMethodID,
		SubscriptionID:  &sub.ID,
	}

	if sub.CardID != nil {
		card, err := st.GetCard(ctx, sub.UserID, *sub.CardID)
		if err != nil {
			return nil, err
		}
		due := InvoiceDueDate(charge, card.ClosingDay, card.DueDay)
		inv, err := s.invoices.EnsureInvoice(ctx, st, card, due)
		if err != nil {
			return nil, err
		}
		chargeDate := charge
		entry.ScheduledDate = due
		entry.CardID = &card.ID
		entry.PurchaseDate = &chargeDate
		entry.InvoiceID = &inv.ID
	}

	if err := st.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	if entry.InvoiceID != nil {
		if err := s.invoices.RecomputeInvoice(ctx, st, sub.UserID, *entry.InvoiceID); err != nil {
			return nil, err
		}
	}

	sub.NextGeneration = AddMonths(sub.NextGeneration, 1)
	if err := st.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return entry, nil
}

// GenerateDueEntries walks the user's active subscriptions whose next
// generation date has arrived and materializes one cycle for each. A
// subscription that fell several months behind catches up one cycle per
// call.
func (s *SubscriptionService) GenerateDueEntries(ctx context.Context, userID uuid.UUID, today time.Time) ([]*models.LedgerEntry, error) {
	var created []*models.LedgerEntry
	err := s.store.WithTx(ctx, func(st *store.Store) error {
		due, err := st.ListDueSubscriptions(ctx, userID, today)
		if err != nil {
			return err
		}
		for _, sub := range due {
			entry, err := s.generateEntry(ctx, st, sub)
			if err != nil {
				return err
			}
			created = append(created, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		s.log.Info("subscription entries generated",
			zap.Int("count", len(created)),
			zap.String("user_id", userID.String()))
	}
	return created, nil
}
