package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freecash-dev/freecash-api/internal/models"
)

const configColumns = `id, uuid, user_id, default_currency, last_export_at, created_at, updated_at`

func scanConfig(row pgx.Row) (*models.UserConfig, error) {
	var c models.UserConfig
	err := row.Scan(&c.ID, &c.UUID, &c.UserID, &c.DefaultCurrency,
		&c.LastExportAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateConfig returns the user's settings row, creating the default one
// on first access.
func (s *Store) GetOrCreateConfig(ctx context.Context, userID uuid.UUID) (*models.UserConfig, error) {
	c, err := scanConfig(s.db.QueryRow(ctx, `
		SELECT `+configColumns+` FROM user_configs WHERE user_id = $1
	`, userID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get config: %w", err)
	}
	c, err = scanConfig(s.db.QueryRow(ctx, `
		INSERT INTO user_configs (uuid, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = user_configs.updated_at
		RETURNING `+configColumns+`
	`, uuid.New(), userID))
	if err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateConfig(ctx context.Context, c *models.UserConfig) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE user_configs
		SET default_currency = $1, updated_at = now()
		WHERE user_id = $2
	`, c.DefaultCurrency, c.UserID)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastExport records when the user last produced a backup artifact.
func (s *Store) SetLastExport(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_configs SET last_export_at = $1, updated_at = now()
		WHERE user_id = $2
	`, at, userID)
	if err != nil {
		return fmt.Errorf("set last export: %w", err)
	}
	return nil
}
