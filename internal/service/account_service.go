// internal/service/account_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
	"finflow-ledger/pkg/lock"

	"github.com/shopspring/decimal"
)

// DefaultAccountCurrency is used when an account is opened without a currency.
const DefaultAccountCurrency = domain.CurrencyTHB

// AccountService manages the lifecycle of accounts. Balances are only changed by LedgerService.
type AccountService interface {
	CreateAccount(ctx context.Context, ownerID int64, currency string, initialBalance decimal.Decimal) (*domain.Account, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]domain.Account, int64, error)
	DeleteAccount(ctx context.Context, id int64) error
}

type accountService struct {
	dbBeginner  db.DBTxBeginner
	dbExecutor  repository.DBExecutor
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	locker      lock.Locker
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
	logger      *slog.Logger
}

// NewAccountService creates a new instance of AccountService.
func NewAccountService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	locker lock.Locker,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &accountService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		locker:      locker,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
		logger:      logger,
	}
}

// CreateAccount opens an account for ownerID. The initial balance may be zero.
func (s *accountService) CreateAccount(ctx context.Context, ownerID int64, cur string, initialBalance decimal.Decimal) (*domain.Account, error) {
	accountCurrency := DefaultAccountCurrency
	if strings.TrimSpace(cur) != "" {
		parsed, err := domain.ParseCurrency(cur)
		if err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		accountCurrency = parsed
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("create account: %w: initial balance must not be negative", util.ErrInvalidAmount)
	}
	if !initialBalance.Equal(initialBalance.Round(domain.BalanceScale)) {
		return nil, fmt.Errorf("create account: %w: at most %d decimal places allowed", util.ErrInvalidAmount, domain.BalanceScale)
	}
	if initialBalance.GreaterThanOrEqual(domain.AmountLimit) {
		return nil, fmt.Errorf("create account: %w: initial balance must be less than %s", util.ErrInvalidAmount, domain.AmountLimit)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("create account: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("create account: transaction controller does not implement DBExecutor")
	}

	if _, err := s.userRepo.GetUserByID(ctx, txExecutor, ownerID); err != nil {
		return nil, fmt.Errorf("create account: owner %d: %w", ownerID, err)
	}

	account := domain.NewAccount(ownerID, accountCurrency)
	account.Balance = initialBalance
	if err := s.accountRepo.CreateAccount(ctx, txExecutor, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("create account: failed to commit transaction: %w", err)
	}

	s.logger.Info("Account created", "account_id", account.ID, "owner_id", ownerID, "currency", account.Currency)
	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

func (s *accountService) ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]domain.Account, int64, error) {
	accounts, totalCount, err := s.accountRepo.ListAccounts(ctx, s.dbExecutor, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, totalCount, nil
}

// DeleteAccount removes an account together with the transactions it owns.
// It waits for in-flight operations on the account to finish first.
func (s *accountService) DeleteAccount(ctx context.Context, id int64) error {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return fmt.Errorf("delete account: %w", util.ErrConcurrencyTimeout)
		}
		return fmt.Errorf("delete account: failed to lock account: %w", err)
	}
	defer release()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("delete account: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("delete account: transaction controller does not implement DBExecutor")
	}

	if _, err := s.accountRepo.GetAccountsForUpdate(ctx, txExecutor, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := s.accountRepo.DeleteAccount(ctx, txExecutor, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("delete account: failed to commit transaction: %w", err)
	}

	s.logger.Info("Account deleted", "account_id", id)
	return nil
}
