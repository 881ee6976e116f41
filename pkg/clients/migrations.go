package clients

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a single schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all client schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create account status catalog",
			SQL: `
				CREATE TABLE IF NOT EXISTS account_statuses (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(32) NOT NULL UNIQUE,
					label VARCHAR(128) NOT NULL
				);

				INSERT INTO account_statuses (code, label) VALUES
					('new', 'Nuevo'),
					('renewed', 'Renovado'),
					('active', 'Activo'),
					('pending', 'Pendiente'),
					('suspended', 'Suspendido')
				ON CONFLICT (code) DO NOTHING;
			`,
		},
		{
			Version:     2,
			Description: "Create plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					invoice_limit INTEGER NOT NULL DEFAULT 0,
					price_cents BIGINT NOT NULL DEFAULT 0,
					term_months INTEGER NOT NULL DEFAULT 12,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create database servers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS database_servers (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					host VARCHAR(255) NOT NULL,
					port INTEGER NOT NULL DEFAULT 1433,
					db_user VARCHAR(255) NOT NULL,
					db_password VARCHAR(255) NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create accounts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					tax_id VARCHAR(64) NOT NULL,
					phone VARCHAR(64),
					email VARCHAR(255),
					active BOOLEAN NOT NULL DEFAULT TRUE,
					email_opt_in BOOLEAN NOT NULL DEFAULT TRUE,
					status_id BIGINT NOT NULL REFERENCES account_statuses(id),
					observations TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);
				CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(status_id);
			`,
		},
		{
			Version:     5,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					account_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
					plan_id BIGINT NOT NULL REFERENCES plans(id),
					created_on DATE,
					renewal_date DATE,
					expiry_date DATE,
					signature_expiry DATE,
					consumed_invoices INTEGER NOT NULL DEFAULT 0,
					agreed_price_cents BIGINT NOT NULL DEFAULT 0,
					observations TEXT NOT NULL DEFAULT '',
					mod_sales BOOLEAN NOT NULL DEFAULT TRUE,
					mod_purchases BOOLEAN NOT NULL DEFAULT FALSE,
					mod_treasury BOOLEAN NOT NULL DEFAULT FALSE,
					mod_inventory BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX IF NOT EXISTS idx_subscriptions_expiry ON subscriptions(expiry_date);
			`,
		},
		{
			Version:     6,
			Description: "Create technical profiles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS technical_profiles (
					id BIGSERIAL PRIMARY KEY,
					account_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
					server_id BIGINT NOT NULL REFERENCES database_servers(id),
					database_name VARCHAR(255) NOT NULL
				);
			`,
		},
	}
}

// RunMigrations applies pending client schema migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS clients_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM clients_migrations WHERE version = $1)",
			migration.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO clients_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
