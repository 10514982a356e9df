// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"finflow-ledger/internal/domain"
)

// TransactionFilter narrows ListTransactions. Nil fields are not applied.
type TransactionFilter struct {
	AccountID   *int64
	ToAccountID *int64
	Type        *domain.TransactionType
	// RealCurrency matches the currency the caller supplied, not the converted one.
	RealCurrency *domain.Currency
	Limit        int
	Offset       int
}

// TransactionRepository defines the interface for transaction data operations.
type TransactionRepository interface {
	// CreateTransaction adds a new transaction record to the database using the provided DBExecutor.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// ListTransactions returns a page of transactions, newest first, and the total number matching the filter.
	ListTransactions(ctx context.Context, q DBExecutor, filter TransactionFilter) ([]domain.Transaction, int64, error)
}
