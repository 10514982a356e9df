// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new transaction record into the database using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (account_id, to_account_id, amount, currency, real_amount, real_currency, transaction_type, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.AccountID,
		transaction.ToAccountID,
		transaction.Amount,
		transaction.Currency,
		transaction.RealAmount,
		transaction.RealCurrency,
		transaction.Type,
		transaction.CreatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		if db.IsNumericOutOfRange(err) {
			return fmt.Errorf("failed to create transaction: %w: amount out of range", util.ErrInvalidAmount)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions retrieves a paginated list of transactions matching the filter.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) ListTransactions(ctx context.Context, q repository.DBExecutor, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.AccountID != nil {
		add("account_id = $%d", *filter.AccountID)
	}
	if filter.ToAccountID != nil {
		add("to_account_id = $%d", *filter.ToAccountID)
	}
	if filter.Type != nil {
		add("transaction_type = $%d", *filter.Type)
	}
	if filter.RealCurrency != nil {
		add("real_currency = $%d", *filter.RealCurrency)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	transactions := []domain.Transaction{}
	query := fmt.Sprintf(`
		SELECT id, account_id, to_account_id, amount, currency, real_amount, real_currency, transaction_type, created_at
		FROM transactions%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
	if err := q.SelectContext(ctx, &transactions, query, pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	var totalCount int64
	if err := q.GetContext(ctx, &totalCount, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count: %w", err)
	}
	return transactions, totalCount, nil
}
