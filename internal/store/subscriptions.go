package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/freecash-dev/freecash-api/internal/models"
)

const subscriptionColumns = `id, uuid, user_id, description, amount::text,
	kind, due_day, category_id, payment_method_id, card_id, active,
	next_generation, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var sub models.Subscription
	var amount string
	err := row.Scan(&sub.ID, &sub.UUID, &sub.UserID, &sub.Description,
		&amount, &sub.Kind, &sub.DueDay, &sub.CategoryID,
		&sub.PaymentMethodID, &sub.CardID, &sub.Active, &sub.NextGeneration,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse subscription amount: %w", err)
	}
	return &sub, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.UUID == uuid.Nil {
		sub.UUID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO subscriptions (uuid, user_id, description, amount, kind,
			due_day, category_id, payment_method_id, card_id, active,
			next_generation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, sub.UUID, sub.UserID, sub.Description, sub.Amount.StringFixed(2),
		sub.Kind, sub.DueDay, sub.CategoryID, sub.PaymentMethodID, sub.CardID,
		sub.Active, sub.NextGeneration).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return s.TouchConfig(ctx, sub.UserID)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET description = $1, amount = $2, kind = $3, due_day = $4,
			category_id = $5, payment_method_id = $6, card_id = $7,
			active = $8, next_generation = $9, updated_at = now()
		WHERE id = $10 AND user_id = $11
	`, sub.Description, sub.Amount.StringFixed(2), sub.Kind, sub.DueDay,
		sub.CategoryID, sub.PaymentMethodID, sub.CardID, sub.Active,
		sub.NextGeneration, sub.ID, sub.UserID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, sub.UserID)
}

func (s *Store) DeleteSubscription(ctx context.Context, userID uuid.UUID, id int64) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM subscriptions WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, userID)
}

func (s *Store) GetSubscription(ctx context.Context, userID uuid.UUID, id int64) (*models.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) GetSubscriptionByUUID(ctx context.Context, userID, uid uuid.UUID) (*models.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE uuid = $1 AND user_id = $2
	`, uid, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by uuid: %w", err)
	}
	return sub, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 ORDER BY description
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// ListDueSubscriptions returns the user's active subscriptions whose next
// generation date is on or before the given day.
func (s *Store) ListDueSubscriptions(ctx context.Context, userID uuid.UUID, today time.Time) ([]*models.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND active = true AND next_generation <= $2
		ORDER BY id
	`, userID, today)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	defer rows.Close()
	var out []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) DeleteUserSubscriptions(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user subscriptions: %w", err)
	}
	return nil
}
