// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"

	"github.com/shopspring/decimal"
)

const accountColumns = `id, owner_id, balance, currency, created_at, updated_at`

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account into the database using the provided DBExecutor.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := `INSERT INTO accounts (owner_id, balance, currency, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query, account.OwnerID, account.Balance, account.Currency, account.CreatedAt, account.UpdatedAt).Scan(&account.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("failed to create account for owner %d: %w", account.OwnerID, util.ErrUserNotFound)
		}
		if db.IsNumericOutOfRange(err) {
			return fmt.Errorf("failed to create account: %w: initial balance out of range", util.ErrInvalidAmount)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID using the provided DBExecutor.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	err := q.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, util.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account by ID %d: %w", id, err)
	}
	return &account, nil
}

// GetAccountsForUpdate locks each account row with SELECT ... FOR UPDATE, lowest id first,
// so two transactions touching the same pair always queue in the same order.
func (r *AccountRepository) GetAccountsForUpdate(ctx context.Context, q repository.DBExecutor, ids ...int64) (map[int64]*domain.Account, error) {
	ordered := make([]int64, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	accounts := make(map[int64]*domain.Account, len(ordered))
	for _, id := range ordered {
		if _, seen := accounts[id]; seen {
			continue
		}
		var account domain.Account
		if err := q.GetContext(ctx, &account, query, id); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return nil, fmt.Errorf("account %d: %w", id, util.ErrAccountNotFound)
			case db.IsLockTimeout(err):
				return nil, fmt.Errorf("lock account %d: %w", id, util.ErrConcurrencyTimeout)
			default:
				return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
			}
		}
		accounts[id] = &account
	}
	return accounts, nil
}

// UpdateAccountBalance overwrites the balance of a specific account using the provided DBExecutor.
func (r *AccountRepository) UpdateAccountBalance(ctx context.Context, q repository.DBExecutor, id int64, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, balance, time.Now().UTC(), id)
	if err != nil {
		if db.IsCheckViolation(err) {
			return fmt.Errorf("update balance of account %d: %w", id, util.ErrInsufficientFunds)
		}
		if db.IsNumericOutOfRange(err) {
			return fmt.Errorf("update balance of account %d: %w: balance would exceed %s", id, util.ErrInvalidAmount, domain.AmountLimit)
		}
		return fmt.Errorf("failed to update balance for account %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating balance for account %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update balance of account %d: %w", id, util.ErrAccountNotFound)
	}
	return nil
}

// ListAccounts retrieves a paginated list of accounts.
// It performs two queries: one for the data and one for the total count.
func (r *AccountRepository) ListAccounts(ctx context.Context, q repository.DBExecutor, filter repository.AccountFilter) ([]domain.Account, int64, error) {
	where := ""
	args := []interface{}{}
	if filter.OwnerID != nil {
		where = ` WHERE owner_id = $1`
		args = append(args, *filter.OwnerID)
	}

	accounts := []domain.Account{}
	query := fmt.Sprintf(`SELECT %s FROM accounts%s ORDER BY id LIMIT $%d OFFSET $%d`,
		accountColumns, where, len(args)+1, len(args)+2)
	if err := q.SelectContext(ctx, &accounts, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	var totalCount int64
	if err := q.GetContext(ctx, &totalCount, `SELECT COUNT(*) FROM accounts`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return accounts, totalCount, nil
}

// DeleteAccount applies the account deletion policy. Callers run it inside the transaction
// that also holds the account row lock.
func (r *AccountRepository) DeleteAccount(ctx context.Context, q repository.DBExecutor, id int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE transactions SET to_account_id = NULL WHERE to_account_id = $1`, id); err != nil {
		return fmt.Errorf("failed to detach transfers into account %d: %w", id, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transactions of account %d: %w", id, err)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting account %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("delete account %d: %w", id, util.ErrAccountNotFound)
	}
	return nil
}
