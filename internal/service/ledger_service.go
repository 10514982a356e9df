// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finflow-ledger/internal/currency"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/events"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
	"finflow-ledger/pkg/lock"

	"github.com/shopspring/decimal"
)

// LedgerService applies balance-changing operations to accounts.
// Every mutation either commits completely or leaves balances and the transaction log untouched.
type LedgerService interface {
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency string) (*domain.Account, *domain.Transaction, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, currency string) (*domain.Account, *domain.Transaction, error)
	Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, currency string) (*domain.Account, *domain.Account, *domain.Transaction, error)
	GetBalance(ctx context.Context, accountID int64) (*domain.Account, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, int64, error)
	Rates() currency.Rates
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	converter       *currency.Converter
	locker          lock.Locker
	publisher       events.Publisher
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	logger          *slog.Logger
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	converter *currency.Converter,
	locker lock.Locker,
	publisher events.Publisher,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) LedgerService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		converter:       converter,
		locker:          locker,
		publisher:       publisher,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		logger:          logger,
	}
}

// Deposit adds amount, converted into the account's currency, to the account.
// An empty currency means the account's own currency.
func (s *ledgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, cur string) (*domain.Account, *domain.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, fmt.Errorf("deposit: %w", err)
	}
	realCurrency, err := parseOptionalCurrency(cur)
	if err != nil {
		return nil, nil, fmt.Errorf("deposit: %w", err)
	}

	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("deposit: %w", err)
	}
	if realCurrency == "" {
		realCurrency = account.Currency
	}
	converted, err := s.convertLeg(amount, realCurrency, account.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("deposit: %w", err)
	}

	accounts, transaction, err := s.apply(ctx, "deposit", []int64{accountID},
		func(q repository.DBExecutor, locked map[int64]*domain.Account) (*domain.Transaction, error) {
			acc := locked[accountID]
			acc.Credit(converted)
			if err := s.accountRepo.UpdateAccountBalance(ctx, q, acc.ID, acc.Balance); err != nil {
				return nil, fmt.Errorf("failed to update account balance: %w", err)
			}

			txn := domain.NewTransaction(acc.ID, nil, converted, acc.Currency, amount, realCurrency, domain.TransactionTypeDeposit)
			if err := s.transactionRepo.CreateTransaction(ctx, q, txn); err != nil {
				return nil, fmt.Errorf("failed to create transaction: %w", err)
			}
			return txn, nil
		})
	if err != nil {
		return nil, nil, err
	}
	return accounts[accountID], transaction, nil
}

// Withdraw removes amount, converted into the account's currency, from the account.
func (s *ledgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, cur string) (*domain.Account, *domain.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, fmt.Errorf("withdraw: %w", err)
	}
	realCurrency, err := parseOptionalCurrency(cur)
	if err != nil {
		return nil, nil, fmt.Errorf("withdraw: %w", err)
	}

	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("withdraw: %w", err)
	}
	if realCurrency == "" {
		realCurrency = account.Currency
	}
	converted, err := s.convertLeg(amount, realCurrency, account.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("withdraw: %w", err)
	}

	accounts, transaction, err := s.apply(ctx, "withdraw", []int64{accountID},
		func(q repository.DBExecutor, locked map[int64]*domain.Account) (*domain.Transaction, error) {
			acc := locked[accountID]
			if err := acc.Debit(converted); err != nil {
				return nil, fmt.Errorf("account %d has %s, needs %s: %w", acc.ID, acc.Balance.StringFixed(domain.BalanceScale), converted, err)
			}
			if err := s.accountRepo.UpdateAccountBalance(ctx, q, acc.ID, acc.Balance); err != nil {
				return nil, fmt.Errorf("failed to update account balance: %w", err)
			}

			txn := domain.NewTransaction(acc.ID, nil, converted, acc.Currency, amount, realCurrency, domain.TransactionTypeWithdraw)
			if err := s.transactionRepo.CreateTransaction(ctx, q, txn); err != nil {
				return nil, fmt.Errorf("failed to create transaction: %w", err)
			}
			return txn, nil
		})
	if err != nil {
		return nil, nil, err
	}
	return accounts[accountID], transaction, nil
}

// Transfer moves amount from one account to another. Each side is converted independently
// from the supplied currency into its own currency; an empty currency means the source's currency.
func (s *ledgerService) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, cur string) (*domain.Account, *domain.Account, *domain.Transaction, error) {
	if fromAccountID == toAccountID {
		return nil, nil, nil, fmt.Errorf("transfer: %w", util.ErrSameAccountTransfer)
	}
	if err := validateAmount(amount); err != nil {
		return nil, nil, nil, fmt.Errorf("transfer: %w", err)
	}
	realCurrency, err := parseOptionalCurrency(cur)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transfer: %w", err)
	}

	fromAccount, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, fromAccountID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transfer: source: %w", err)
	}
	toAccount, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, toAccountID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transfer: destination: %w", err)
	}
	if realCurrency == "" {
		realCurrency = fromAccount.Currency
	}
	amountFrom, err := s.convertLeg(amount, realCurrency, fromAccount.Currency)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transfer: source leg: %w", err)
	}
	amountTo, err := s.convertLeg(amount, realCurrency, toAccount.Currency)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transfer: destination leg: %w", err)
	}

	accounts, transaction, err := s.apply(ctx, "transfer", []int64{fromAccountID, toAccountID},
		func(q repository.DBExecutor, locked map[int64]*domain.Account) (*domain.Transaction, error) {
			from, to := locked[fromAccountID], locked[toAccountID]
			if err := from.Debit(amountFrom); err != nil {
				return nil, fmt.Errorf("account %d has %s, needs %s: %w", from.ID, from.Balance.StringFixed(domain.BalanceScale), amountFrom, err)
			}
			to.Credit(amountTo)

			if err := s.accountRepo.UpdateAccountBalance(ctx, q, from.ID, from.Balance); err != nil {
				return nil, fmt.Errorf("failed to update source account balance: %w", err)
			}
			if err := s.accountRepo.UpdateAccountBalance(ctx, q, to.ID, to.Balance); err != nil {
				return nil, fmt.Errorf("failed to update destination account balance: %w", err)
			}

			toID := to.ID
			txn := domain.NewTransaction(from.ID, &toID, amountFrom, from.Currency, amount, realCurrency, domain.TransactionTypeTransfer)
			if err := s.transactionRepo.CreateTransaction(ctx, q, txn); err != nil {
				return nil, fmt.Errorf("failed to create transaction: %w", err)
			}
			return txn, nil
		})
	if err != nil {
		return nil, nil, nil, err
	}
	return accounts[fromAccountID], accounts[toAccountID], transaction, nil
}

// GetBalance returns the current state of an account.
func (s *ledgerService) GetBalance(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return account, nil
}

// ListTransactions retrieves a paginated, filtered list of transactions.
func (s *ledgerService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	transactions, totalCount, err := s.transactionRepo.ListTransactions(ctx, s.dbExecutor, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve transactions: %w", err)
	}
	return transactions, totalCount, nil
}

// Rates returns a copy of the active conversion table.
func (s *ledgerService) Rates() currency.Rates {
	return s.converter.Rates()
}

// mutation writes the balance changes of one operation and returns the transaction it recorded.
type mutation func(q repository.DBExecutor, locked map[int64]*domain.Account) (*domain.Transaction, error)

// apply takes the account locks, re-reads the accounts under row locks, runs fn and commits.
// The event is published only after a successful commit.
func (s *ledgerService) apply(ctx context.Context, op string, ids []int64, fn mutation) (map[int64]*domain.Account, *domain.Transaction, error) {
	release, err := s.locker.Acquire(ctx, ids...)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.logger.Warn("Timed out waiting for account lock", "op", op, "account_ids", ids)
			return nil, nil, fmt.Errorf("%s: %w", op, util.ErrConcurrencyTimeout)
		}
		return nil, nil, fmt.Errorf("%s: failed to lock accounts: %w", op, err)
	}
	defer release()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	locked, err := s.accountRepo.GetAccountsForUpdate(ctx, txExecutor, ids...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	transaction, err := fn(txExecutor, locked)
	if err != nil {
		s.logger.Debug("Ledger operation rejected", "op", op, "account_ids", ids, "error", err)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	s.logger.Info("Ledger operation committed",
		"op", op,
		"transaction_id", transaction.ID,
		"account_id", transaction.AccountID,
		"amount", transaction.Amount.StringFixed(domain.BalanceScale),
		"currency", transaction.Currency,
	)

	touched := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		touched = append(touched, locked[id])
	}
	if err := s.publisher.Publish(ctx, events.NewTransactionEvent(transaction, touched...)); err != nil {
		s.logger.Warn("Failed to publish transaction event", "transaction_id", transaction.ID, "error", err)
	}
	return locked, transaction, nil
}

// convertLeg converts amount into the target currency and rounds it to the balance scale
// with banker's rounding. A leg that rounds to nothing is rejected.
func (s *ledgerService) convertLeg(amount decimal.Decimal, from, to domain.Currency) (decimal.Decimal, error) {
	converted, err := s.converter.Convert(amount, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	converted = converted.RoundBank(domain.BalanceScale)
	if !converted.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s %s is worth nothing in %s", util.ErrInvalidAmount, amount, from, to)
	}
	if converted.GreaterThanOrEqual(domain.AmountLimit) {
		return decimal.Zero, fmt.Errorf("%w: %s %s exceeds the %s limit", util.ErrInvalidAmount, amount, from, to)
	}
	return converted, nil
}

// validateAmount accepts strictly positive amounts below AmountLimit with at most BalanceScale fractional digits.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", util.ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(domain.BalanceScale)) {
		return fmt.Errorf("%w: at most %d decimal places allowed", util.ErrInvalidAmount, domain.BalanceScale)
	}
	if amount.GreaterThanOrEqual(domain.AmountLimit) {
		return fmt.Errorf("%w: must be less than %s", util.ErrInvalidAmount, domain.AmountLimit)
	}
	return nil
}

// parseOptionalCurrency returns "" for an omitted currency.
func parseOptionalCurrency(s string) (domain.Currency, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return domain.ParseCurrency(s)
}
