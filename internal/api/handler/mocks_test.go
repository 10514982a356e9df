// internal/api/handler/mocks_test.go
package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"finflow-ledger/internal/currency"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
)

// MockLedgerService is a mock implementation of service.LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, cur string) (*domain.Account, *domain.Transaction, error) {
	args := m.Called(ctx, accountID, amount, cur)
	return accountArg(args, 0), transactionArg(args, 1), args.Error(2)
}

func (m *MockLedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, cur string) (*domain.Account, *domain.Transaction, error) {
	args := m.Called(ctx, accountID, amount, cur)
	return accountArg(args, 0), transactionArg(args, 1), args.Error(2)
}

func (m *MockLedgerService) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, cur string) (*domain.Account, *domain.Account, *domain.Transaction, error) {
	args := m.Called(ctx, fromAccountID, toAccountID, amount, cur)
	return accountArg(args, 0), accountArg(args, 1), transactionArg(args, 2), args.Error(3)
}

func (m *MockLedgerService) GetBalance(ctx context.Context, accountID int64) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockLedgerService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, filter)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) Rates() currency.Rates {
	return m.Called().Get(0).(currency.Rates)
}

// MockAccountService is a mock implementation of service.AccountService.
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) CreateAccount(ctx context.Context, ownerID int64, cur string, initialBalance decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, ownerID, cur, initialBalance)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]domain.Account, int64, error) {
	args := m.Called(ctx, filter)
	accounts, _ := args.Get(0).([]domain.Account)
	return accounts, args.Get(1).(int64), args.Error(2)
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// MockUserService is a mock implementation of service.UserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	args := m.Called(ctx, username, password)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockUserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserService) Refresh(ctx context.Context, userID int64) (string, time.Time, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func accountArg(args mock.Arguments, i int) *domain.Account {
	a, _ := args.Get(i).(*domain.Account)
	return a
}

func transactionArg(args mock.Arguments, i int) *domain.Transaction {
	t, _ := args.Get(i).(*domain.Transaction)
	return t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decEq(s string) interface{} {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}
