package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/freecash-dev/freecash-api/internal/models"
)

// AppendImportLog records one import attempt, successful or not.
func (s *Store) AppendImportLog(ctx context.Context, l *models.ImportLog) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO import_logs (user_id, source, success, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, l.UserID, l.Source, l.Success, l.Message).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("append import log: %w", err)
	}
	return nil
}

func (s *Store) ListImportLogs(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, source, success, message, created_at
		FROM import_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}
	defer rows.Close()
	var out []*models.ImportLog
	for rows.Next() {
		var l models.ImportLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Source, &l.Success,
			&l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
