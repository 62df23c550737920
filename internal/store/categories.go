package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freecash-dev/freecash-api/internal/models"
)

const categoryColumns = `id, uuid, user_id, name, kind, is_default, created_at, updated_at`

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.UUID, &c.UserID, &c.Name, &c.Kind, &c.IsDefault,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (uuid, user_id, name, kind, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, c.UUID, c.UserID, c.Name, c.Kind, c.IsDefault).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return s.TouchConfig(ctx, c.UserID)
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE categories
		SET name = $1, kind = $2, is_default = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5
	`, c.Name, c.Kind, c.IsDefault, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, c.UserID)
}

func (s *Store) DeleteCategory(ctx context.Context, userID uuid.UUID, id int64) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM categories WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.TouchConfig(ctx, userID)
}

func (s *Store) GetCategory(ctx context.Context, userID uuid.UUID, id int64) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRow(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Store) GetCategoryByUUID(ctx context.Context, userID, uid uuid.UUID) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRow(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE uuid = $1 AND user_id = $2
	`, uid, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category by uuid: %w", err)
	}
	return c, nil
}

func (s *Store) GetCategoryByName(ctx context.Context, userID uuid.UUID, name string) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRow(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = $1 AND upper(name) = upper($2)
		ORDER BY id LIMIT 1
	`, userID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

// GetOrCreateCategory looks a category up by name, creating it when absent.
// Importers use this so referenced labels always resolve.
func (s *Store) GetOrCreateCategory(ctx context.Context, userID uuid.UUID, name string, kind models.EntryKind) (*models.Category, error) {
	c, err := s.GetCategoryByName(ctx, userID, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	c = &models.Category{UserID: userID, Name: name, Kind: kind}
	if err := s.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteUserCategories(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM categories WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user categories: %w", err)
	}
	return nil
}
