package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/freecash-dev/freecash-api/internal/models"
)

const cardColumns = `id, uuid, user_id, name, brand, last_digits,
	credit_limit::text, closing_day, due_day, active, created_at, updated_at`

func scanCard(row pgx.Row) (*models.Card, error) {
	var c models.Card
	var limit *string
	err := row.Scan(&c.ID, &c.UUID, &c.UserID, &c.Name, &c.Brand,
		&c.LastDigits, &limit, &c.ClosingDay, &c.DueDay, &c.Active,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		d, err := decimal.NewFromString(*limit)
		if err != nil {
			return nil, fmt.Errorf("parse card limit: %w", err)
		}
		c.Limit = &d
	}
	return &c, nil
}

func cardLimitParam(c *models.Card) *string {
	if c.Limit == nil {
		return nil
	}
	v := c.Limit.StringFixed(2)
	return &v
}

func (s *Store) CreateCard(ctx context.Context, c *models.Card) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO cards (uuid, user_id, name, brand, last_digits,
			credit_limit, closing_day, due_day, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, c.UUID, c.UserID, c.Name, c.Brand, c.LastDigits, cardLimitParam(c),
		c.ClosingDay, c.DueDay, c.Active).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return s.TouchConfig(ctx, c.UserID)
}

func (s *Store) UpdateCard(ctx context.Context, c *models.Card) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE cards
		SET name = $1, brand = $2, last_digits = $3, credit_limit = $4,
			closing_day = $5, due_day = $6, active = $7, updated_at = now()
		WHERE id = $8 AND user_id = $9
	`, c.Name, c.Brand, c.LastDigits, cardLimitParam(c), c.ClosingDay,
		c.DueDay, c.Active, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, c.UserID)
}

func (s *Store) DeleteCard(ctx context.Context, userID uuid.UUID, id int64) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM cards WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, userID)
}

func (s *Store) GetCard(ctx context.Context, userID uuid.UUID, id int64) (*models.Card, error) {
	c, err := scanCard(s.db.QueryRow(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (s *Store) GetCardByUUID(ctx context.Context, userID, uid uuid.UUID) (*models.Card, error) {
	c, err := scanCard(s.db.QueryRow(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE uuid = $1 AND user_id = $2
	`, uid, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card by uuid: %w", err)
	}
	return c, nil
}

func (s *Store) GetCardByName(ctx context.Context, userID uuid.UUID, name string) (*models.Card, error) {
	c, err := scanCard(s.db.QueryRow(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE user_id = $1 AND upper(name) = upper($2)
		ORDER BY id LIMIT 1
	`, userID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card by name: %w", err)
	}
	return c, nil
}

func (s *Store) ListCards(ctx context.Context, userID uuid.UUID) ([]*models.Card, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()
	var out []*models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteUserCards(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cards WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user cards: %w", err)
	}
	return nil
}
