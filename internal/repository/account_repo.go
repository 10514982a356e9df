// internal/repository/account_repo.go
package repository

import (
	"context"

	"finflow-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// AccountFilter narrows ListAccounts. A nil OwnerID lists every account.
type AccountFilter struct {
	OwnerID *int64
	Limit   int
	Offset  int
}

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// CreateAccount adds a new account to the database using the provided DBExecutor.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccountByID reads an account without locking it.
	GetAccountByID(ctx context.Context, q DBExecutor, id int64) (*domain.Account, error)
	// GetAccountsForUpdate row-locks the given accounts in ascending id order and returns them keyed by id.
	// Must run inside a transaction.
	GetAccountsForUpdate(ctx context.Context, q DBExecutor, ids ...int64) (map[int64]*domain.Account, error)
	// UpdateAccountBalance stores balance as the new absolute balance of the account.
	UpdateAccountBalance(ctx context.Context, q DBExecutor, id int64, balance decimal.Decimal) error
	// ListAccounts returns a page of accounts and the total number matching the filter.
	ListAccounts(ctx context.Context, q DBExecutor, filter AccountFilter) ([]domain.Account, int64, error)
	// DeleteAccount removes the account, deleting the transactions it owns and detaching it
	// from transfers where it was the counterparty. Must run inside a transaction.
	DeleteAccount(ctx context.Context, q DBExecutor, id int64) error
}
