// pkg/db/schema.go
package db

import (
	"context"
	"fmt"
)

// schema creates the ledger tables. Foreign keys on transactions are plain references:
// the delete policy for accounts is applied by the account repository.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id         BIGSERIAL PRIMARY KEY,
		owner_id   BIGINT NOT NULL REFERENCES users (id),
		balance    NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency   VARCHAR(3) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_owner_id ON accounts (owner_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               BIGSERIAL PRIMARY KEY,
		account_id       BIGINT NOT NULL REFERENCES accounts (id),
		to_account_id    BIGINT REFERENCES accounts (id),
		amount           NUMERIC(20, 2) NOT NULL,
		currency         VARCHAR(3) NOT NULL,
		real_amount      NUMERIC(20, 2) NOT NULL,
		real_currency    VARCHAR(3) NOT NULL,
		transaction_type VARCHAR(10) NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions (account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_to_account_id ON transactions (to_account_id)`,
}

// Migrate creates any missing tables and indexes inside one transaction.
func Migrate(ctx context.Context, dbConn DBTxBeginner) error {
	tx, err := dbConn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: failed to begin transaction: %w", err)
	}
	defer RollbackTx(tx)

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: failed to commit: %w", err)
	}
	return nil
}
