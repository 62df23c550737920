package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freecash-dev/freecash-api/internal/models"
)

const paymentMethodColumns = `id, uuid, user_id, name, active, created_at, updated_at`

func scanPaymentMethod(row pgx.Row) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	err := row.Scan(&m.ID, &m.UUID, &m.UserID, &m.Name, &m.Active,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO payment_methods (uuid, user_id, name, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, m.UUID, m.UserID, m.Name, m.Active).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment method: %w", err)
	}
	return s.TouchConfig(ctx, m.UserID)
}

func (s *Store) UpdatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_methods
		SET name = $1, active = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4
	`, m.Name, m.Active, m.ID, m.UserID)
	if err != nil {
		return fmt.Errorf("update payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, m.UserID)
}

func (s *Store) DeletePaymentMethod(ctx context.Context, userID uuid.UUID, id int64) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM payment_methods WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, userID)
}

func (s *Store) GetPaymentMethod(ctx context.Context, userID uuid.UUID, id int64) (*models.PaymentMethod, error) {
	m, err := scanPaymentMethod(s.db.QueryRow(ctx, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment method: %w", err)
	}
	return m, nil
}

func (s *Store) GetPaymentMethodByUUID(ctx context.Context, userID, uid uuid.UUID) (*models.PaymentMethod, error) {
	m, err := scanPaymentMethod(s.db.QueryRow(ctx, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE uuid = $1 AND user_id = $2
	`, uid, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment method by uuid: %w", err)
	}
	return m, nil
}

func (s *Store) GetPaymentMethodByName(ctx context.Context, userID uuid.UUID, name string) (*models.PaymentMethod, error) {
	m, err := scanPaymentMethod(s.db.QueryRow(ctx, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE user_id = $1 AND upper(name) = upper($2)
		ORDER BY id LIMIT 1
	`, userID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment method by name: %w", err)
	}
	return m, nil
}

func (s *Store) GetOrCreatePaymentMethod(ctx context.Context, userID uuid.UUID, name string) (*models.PaymentMethod, error) {
	m, err := s.GetPaymentMethodByName(ctx, userID, name)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	m = &models.PaymentMethod{UserID: userID, Name: name, Active: true}
	if err := s.CreatePaymentMethod(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()
	var out []*models.PaymentMethod
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteUserPaymentMethods(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM payment_methods WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user payment methods: %w", err)
	}
	return nil
}
