package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so repeated boots
// are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		kind CHAR(1) NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_methods (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT 'OUTRO',
		last_digits TEXT NOT NULL DEFAULT '',
		credit_limit NUMERIC(12,2),
		closing_day INT NOT NULL,
		due_day INT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		kind CHAR(1) NOT NULL,
		due_day INT NOT NULL,
		category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		payment_method_id BIGINT REFERENCES payment_methods(id) ON DELETE SET NULL,
		card_id BIGINT REFERENCES cards(id) ON DELETE SET NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		next_generation DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind CHAR(1) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount NUMERIC(12,2) NOT NULL,
		scheduled_date DATE NOT NULL,
		realized BOOLEAN NOT NULL DEFAULT false,
		realized_date DATE,
		category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		payment_method_id BIGINT REFERENCES payment_methods(id) ON DELETE SET NULL,
		card_id BIGINT REFERENCES cards(id) ON DELETE SET NULL,
		card_category TEXT,
		purchase_date DATE,
		is_invoice BOOLEAN NOT NULL DEFAULT false,
		invoice_id BIGINT REFERENCES ledger_entries(id) ON DELETE SET NULL,
		installment BOOLEAN NOT NULL DEFAULT false,
		installment_index INT,
		installment_count INT,
		installment_group BIGINT,
		subscription_id BIGINT REFERENCES subscriptions(id) ON DELETE SET NULL,
		is_legacy BOOLEAN NOT NULL DEFAULT false,
		origin_year INT,
		origin_month INT,
		origin_label TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_user_kind_date
		ON ledger_entries (user_id, kind, scheduled_date)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_user_realized
		ON ledger_entries (user_id, realized, realized_date)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_invoice
		ON ledger_entries (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_installment_group
		ON ledger_entries (installment_group)`,
	`CREATE TABLE IF NOT EXISTS user_configs (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		default_currency TEXT NOT NULL DEFAULT 'BRL',
		last_export_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS import_logs (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		success BOOLEAN NOT NULL DEFAULT false,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS statement_imports (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		bank TEXT NOT NULL DEFAULT 'generic',
		status TEXT NOT NULL DEFAULT 'pending',
		lines_found INT NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS statement_lines (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		import_id BIGINT NOT NULL REFERENCES statement_imports(id) ON DELETE CASCADE,
		line_date DATE NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		kind CHAR(1) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		entry_id BIGINT REFERENCES ledger_entries(id) ON DELETE SET NULL
	)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
