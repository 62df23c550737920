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

func (s *Store) CreateStatementImport(ctx context.Context, si *models.StatementImport) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO statement_imports (user_id, filename, bank, status, lines_found, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, si.UserID, si.Filename, si.Bank, si.Status, si.LinesFound, si.Error).
		Scan(&si.ID, &si.CreatedAt)
	if err != nil {
		return fmt.Errorf("create statement import: %w", err)
	}
	return nil
}

func (s *Store) UpdateStatementImport(ctx context.Context, si *models.StatementImport) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE statement_imports
		SET status = $1, lines_found = $2, error = $3
		WHERE id = $4 AND user_id = $5
	`, si.Status, si.LinesFound, si.Error, si.ID, si.UserID)
	if err != nil {
		return fmt.Errorf("update statement import: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetStatementImport(ctx context.Context, userID uuid.UUID, id int64) (*models.StatementImport, error) {
	var si models.StatementImport
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, filename, bank, status, lines_found, error, created_at
		FROM statement_imports
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&si.ID, &si.UserID, &si.Filename, &si.Bank,
		&si.Status, &si.LinesFound, &si.Error, &si.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get statement import: %w", err)
	}
	return &si, nil
}

func (s *Store) ListStatementImports(ctx context.Context, userID uuid.UUID) ([]*models.StatementImport, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, filename, bank, status, lines_found, error, created_at
		FROM statement_imports
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list statement imports: %w", err)
	}
	defer rows.Close()
	var out []*models.StatementImport
	for rows.Next() {
		var si models.StatementImport
		if err := rows.Scan(&si.ID, &si.UserID, &si.Filename, &si.Bank,
			&si.Status, &si.LinesFound, &si.Error, &si.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &si)
	}
	return out, rows.Err()
}

func (s *Store) CreateStatementLine(ctx context.Context, l *models.StatementLine) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO statement_lines (import_id, line_date, description, amount, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, l.ImportID, l.Date, l.Description, l.Amount.StringFixed(2), l.Kind,
		l.Status).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create statement line: %w", err)
	}
	return nil
}

func scanStatementLine(row pgx.Row) (*models.StatementLine, error) {
	var l models.StatementLine
	var amount string
	err := row.Scan(&l.ID, &l.ImportID, &l.Date, &l.Description, &amount,
		&l.Kind, &l.Status, &l.EntryID)
	if err != nil {
		return nil, err
	}
	l.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse line amount: %w", err)
	}
	return &l, nil
}

const statementLineColumns = `l.id, l.import_id, l.line_date, l.description,
	l.amount::text, l.kind, l.status, l.entry_id`

// GetStatementLine fetches a line, checking that its import belongs to the
// user.
func (s *Store) GetStatementLine(ctx context.Context, userID uuid.UUID, id int64) (*models.StatementLine, error) {
	l, err := scanStatementLine(s.db.QueryRow(ctx, `
		SELECT `+statementLineColumns+`
		FROM statement_lines l
		JOIN statement_imports i ON i.id = l.import_id
		WHERE l.id = $1 AND i.user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get statement line: %w", err)
	}
	return l, nil
}

func (s *Store) ListStatementLines(ctx context.Context, userID uuid.UUID, importID int64) ([]*models.StatementLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+statementLineColumns+`
		FROM statement_lines l
		JOIN statement_imports i ON i.id = l.import_id
		WHERE l.import_id = $1 AND i.user_id = $2
		ORDER BY l.line_date, l.id
	`, importID, userID)
	if err != nil {
		return nil, fmt.Errorf("list statement lines: %w", err)
	}
	defer rows.Close()
	var out []*models.StatementLine
	for rows.Next() {
		l, err := scanStatementLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetStatementLineStatus marks a line confirmed or discarded, optionally
// linking the ledger entry it produced.
func (s *Store) SetStatementLineStatus(ctx context.Context, lineID int64, status string, entryID *int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE statement_lines SET status = $1, entry_id = $2 WHERE id = $3
	`, status, entryID, lineID)
	if err != nil {
		return fmt.Errorf("set statement line status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
