// internal/service/ledger_service_test.go
package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"finflow-ledger/internal/currency"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/events"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/lock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerMocks struct {
	accountRepo     *MockAccountRepository
	transactionRepo *MockTransactionRepository
	dbBeginner      *MockDBBeginner
	dbExecutor      *MockDBExecutor
	tx              *MockTxController
	publisher       *MockPublisher
}

func (m ledgerMocks) assertExpectations(t *testing.T) {
	mock.AssertExpectationsForObjects(t, m.accountRepo, m.transactionRepo, m.dbBeginner, m.dbExecutor, m.tx, m.publisher)
}

func newLedgerUnderTest(t *testing.T, locker lock.Locker) (LedgerService, ledgerMocks) {
	t.Helper()
	converter, err := currency.NewConverter(currency.DefaultRates())
	require.NoError(t, err)
	if locker == nil {
		locker = lock.NewLocalLocker(time.Second)
	}

	m := ledgerMocks{
		accountRepo:     new(MockAccountRepository),
		transactionRepo: new(MockTransactionRepository),
		dbBeginner:      new(MockDBBeginner),
		dbExecutor:      new(MockDBExecutor),
		tx:              new(MockTxController),
		publisher:       new(MockPublisher),
	}
	beginTx, commitTx, rollbackTx := txFuncs(m.tx)
	service := NewLedgerService(m.dbBeginner, m.dbExecutor, m.accountRepo, m.transactionRepo,
		converter, locker, m.publisher, beginTx, commitTx, rollbackTx, discardLogger())
	return service, m
}

func account(id int64, balance string, cur domain.Currency) *domain.Account {
	return &domain.Account{ID: id, OwnerID: 1, Balance: decimal.RequireFromString(balance), Currency: cur}
}

// TestDeposit tests the Deposit method of LedgerService.
func TestDeposit(t *testing.T) {
	accountID := int64(1)
	amount := decimal.RequireFromString("50.00")

	t.Run("SuccessfulDeposit", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
			Return(map[int64]*domain.Account{accountID: account(accountID, "100.00", domain.CurrencyTHB)}, nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, accountID, decEq("150.00")).Return(nil).Once()
		m.transactionRepo.On("CreateTransaction", ctx, m.tx, mock.AnythingOfType("*domain.Transaction")).
			Run(func(args mock.Arguments) { args.Get(2).(*domain.Transaction).ID = 10 }).
			Return(nil).Once()
		m.tx.On("Commit").Return(nil).Once()
		m.tx.On("Rollback").Return(nil).Maybe()
		m.publisher.On("Publish", ctx, mock.MatchedBy(func(ev events.TransactionEvent) bool {
			return ev.TransactionID == 10 && ev.Balances[accountID].Equal(decimal.NewFromInt(150))
		})).Return(nil).Once()

		resAccount, resTx, err := service.Deposit(ctx, accountID, amount, "THB")

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(150).Equal(resAccount.Balance))
		assert.Equal(t, domain.TransactionTypeDeposit, resTx.Type)
		assert.Equal(t, accountID, resTx.AccountID)
		assert.Nil(t, resTx.ToAccountID)
		assert.True(t, amount.Equal(resTx.Amount))
		assert.Equal(t, domain.CurrencyTHB, resTx.Currency)
		assert.True(t, amount.Equal(resTx.RealAmount))
		assert.Equal(t, domain.CurrencyTHB, resTx.RealCurrency)

		m.assertExpectations(t)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		for _, raw := range []string{"-10.00", "0", "1.001", "1000000000000000000", "12345678901234567890.50"} {
			service, m := newLedgerUnderTest(t, nil)

			resAccount, resTx, err := service.Deposit(context.Background(), accountID, decimal.RequireFromString(raw), "THB")

			assert.ErrorIs(t, err, util.ErrInvalidAmount, raw)
			assert.Nil(t, resAccount)
			assert.Nil(t, resTx)
			m.accountRepo.AssertNotCalled(t, "GetAccountByID", mock.Anything, mock.Anything, mock.Anything)
			m.tx.AssertNotCalled(t, "Commit")
			m.tx.AssertNotCalled(t, "Rollback")
			m.assertExpectations(t)
		}
	})

	t.Run("UnsupportedCurrency", func(t *testing.T) {
		service, m := newLedgerUnderTest(t, nil)

		_, _, err := service.Deposit(context.Background(), accountID, amount, "EUR")

		assert.ErrorIs(t, err, util.ErrUnsupportedCurrency)
		m.assertExpectations(t)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(nil, util.ErrAccountNotFound).Once()

		_, _, err := service.Deposit(ctx, accountID, amount, "")

		assert.ErrorIs(t, err, util.ErrAccountNotFound)
		m.tx.AssertNotCalled(t, "Rollback")
		m.assertExpectations(t)
	})

	t.Run("UpdateBalanceError", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
			Return(map[int64]*domain.Account{accountID: account(accountID, "100.00", domain.CurrencyTHB)}, nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, accountID, decEq("150")).Return(errors.New("db error")).Once()
		m.tx.On("Rollback").Return(nil).Once()

		resAccount, resTx, err := service.Deposit(ctx, accountID, amount, "THB")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update account balance")
		assert.Nil(t, resAccount)
		assert.Nil(t, resTx)
		m.tx.AssertNotCalled(t, "Commit")
		m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("ConvertedDeposit", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyUSD), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
			Return(map[int64]*domain.Account{accountID: account(accountID, "100.00", domain.CurrencyUSD)}, nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, accountID, decEq("100.99")).Return(nil).Once()
		m.transactionRepo.On("CreateTransaction", ctx, m.tx, mock.AnythingOfType("*domain.Transaction")).Return(nil).Once()
		m.tx.On("Commit").Return(nil).Once()
		m.tx.On("Rollback").Return(nil).Maybe()
		m.publisher.On("Publish", ctx, mock.Anything).Return(nil).Once()

		_, resTx, err := service.Deposit(ctx, accountID, decimal.NewFromInt(30), "thb")

		require.NoError(t, err)
		assert.Equal(t, "0.99", resTx.Amount.String())
		assert.Equal(t, domain.CurrencyUSD, resTx.Currency)
		assert.Equal(t, "30", resTx.RealAmount.String())
		assert.Equal(t, domain.CurrencyTHB, resTx.RealCurrency)
		m.assertExpectations(t)
	})

	t.Run("LegRoundsToZero", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyUSD), nil).Once()

		// 0.01 THB * 0.033 = 0.00033 USD
		_, _, err := service.Deposit(ctx, accountID, decimal.RequireFromString("0.01"), "THB")

		assert.ErrorIs(t, err, util.ErrInvalidAmount)
		m.assertExpectations(t)
	})
}

func TestWithdraw(t *testing.T) {
	accountID := int64(1)

	t.Run("SuccessfulWithdraw", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
			Return(map[int64]*domain.Account{accountID: account(accountID, "100.00", domain.CurrencyTHB)}, nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, accountID, decEq("0")).Return(nil).Once()
		m.transactionRepo.On("CreateTransaction", ctx, m.tx, mock.AnythingOfType("*domain.Transaction")).Return(nil).Once()
		m.tx.On("Commit").Return(nil).Once()
		m.tx.On("Rollback").Return(nil).Maybe()
		m.publisher.On("Publish", ctx, mock.Anything).Return(nil).Once()

		resAccount, resTx, err := service.Withdraw(ctx, accountID, decimal.NewFromInt(100), "")

		require.NoError(t, err)
		assert.True(t, resAccount.Balance.IsZero())
		assert.Equal(t, domain.TransactionTypeWithdraw, resTx.Type)
		assert.Equal(t, domain.CurrencyTHB, resTx.RealCurrency)
		m.assertExpectations(t)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
			Return(map[int64]*domain.Account{accountID: account(accountID, "100.00", domain.CurrencyTHB)}, nil).Once()
		m.tx.On("Rollback").Return(nil).Once()

		resAccount, resTx, err := service.Withdraw(ctx, accountID, decimal.NewFromInt(150), "THB")

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		assert.Nil(t, resAccount)
		assert.Nil(t, resTx)
		m.accountRepo.AssertNotCalled(t, "UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.transactionRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
		m.tx.AssertNotCalled(t, "Commit")
		m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("RowLockTimeout", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "100.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).Return(nil, util.ErrConcurrencyTimeout).Once()
		m.tx.On("Rollback").Return(nil).Once()

		_, _, err := service.Withdraw(ctx, accountID, decimal.NewFromInt(1), "")

		assert.ErrorIs(t, err, util.ErrConcurrencyTimeout)
		assert.True(t, util.IsRetryable(err))
		m.assertExpectations(t)
	})
}

func TestTransfer(t *testing.T) {
	fromID, toID := int64(1), int64(2)

	t.Run("SameAccount", func(t *testing.T) {
		service, m := newLedgerUnderTest(t, nil)

		_, _, _, err := service.Transfer(context.Background(), fromID, fromID, decimal.NewFromInt(50), "THB")

		assert.ErrorIs(t, err, util.ErrSameAccountTransfer)
		m.accountRepo.AssertNotCalled(t, "GetAccountByID", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("CrossCurrency", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, fromID).Return(account(fromID, "100.00", domain.CurrencyUSD), nil).Once()
		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, toID).Return(account(toID, "0.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{fromID, toID}).
			Return(map[int64]*domain.Account{
				fromID: account(fromID, "100.00", domain.CurrencyUSD),
				toID:   account(toID, "0.00", domain.CurrencyTHB),
			}, nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, fromID, decEq("90")).Return(nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, toID, decEq("300")).Return(nil).Once()
		m.transactionRepo.On("CreateTransaction", ctx, m.tx, mock.AnythingOfType("*domain.Transaction")).Return(nil).Once()
		m.tx.On("Commit").Return(nil).Once()
		m.tx.On("Rollback").Return(nil).Maybe()
		m.publisher.On("Publish", ctx, mock.Anything).Return(nil).Once()

		from, to, txn, err := service.Transfer(ctx, fromID, toID, decimal.NewFromInt(10), "USD")

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(90).Equal(from.Balance))
		assert.True(t, decimal.NewFromInt(300).Equal(to.Balance))
		assert.Equal(t, domain.TransactionTypeTransfer, txn.Type)
		assert.Equal(t, fromID, txn.AccountID)
		require.NotNil(t, txn.ToAccountID)
		assert.Equal(t, toID, *txn.ToAccountID)
		assert.True(t, decimal.NewFromInt(10).Equal(txn.Amount))
		assert.Equal(t, domain.CurrencyUSD, txn.Currency)
		m.assertExpectations(t)
	})

	t.Run("DestinationNotFound", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, fromID).Return(account(fromID, "100.00", domain.CurrencyUSD), nil).Once()
		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, toID).Return(nil, util.ErrAccountNotFound).Once()

		_, _, _, err := service.Transfer(ctx, fromID, toID, decimal.NewFromInt(10), "")

		assert.ErrorIs(t, err, util.ErrAccountNotFound)
		m.assertExpectations(t)
	})

	t.Run("LockTimeout", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, stubLocker{err: lock.ErrTimeout})

		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, fromID).Return(account(fromID, "100.00", domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, toID).Return(account(toID, "0.00", domain.CurrencyTHB), nil).Once()

		_, _, _, err := service.Transfer(ctx, fromID, toID, decimal.NewFromInt(10), "")

		assert.ErrorIs(t, err, util.ErrConcurrencyTimeout)
		m.tx.AssertNotCalled(t, "Rollback")
		m.assertExpectations(t)
	})
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	accountID := int64(3)
	service, m := newLedgerUnderTest(t, nil)

	m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "1.00", domain.CurrencyTHB), nil).Once()
	m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
		Return(map[int64]*domain.Account{accountID: account(accountID, "1.00", domain.CurrencyTHB)}, nil).Once()
	m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, accountID, decEq("2")).Return(nil).Once()
	m.transactionRepo.On("CreateTransaction", ctx, m.tx, mock.AnythingOfType("*domain.Transaction")).Return(nil).Once()
	m.tx.On("Commit").Return(nil).Once()
	m.tx.On("Rollback").Return(nil).Maybe()
	m.publisher.On("Publish", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	resAccount, _, err := service.Deposit(ctx, accountID, decimal.NewFromInt(1), "")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2).Equal(resAccount.Balance))
	m.assertExpectations(t)
}

func TestRatesReturnsCopy(t *testing.T) {
	service, _ := newLedgerUnderTest(t, nil)

	rates := service.Rates()
	rates[currency.Pair{From: domain.CurrencyUSD, To: domain.CurrencyTHB}] = decimal.NewFromInt(1)

	again := service.Rates()
	assert.True(t, decimal.NewFromInt(30).Equal(again[currency.Pair{From: domain.CurrencyUSD, To: domain.CurrencyTHB}]))
}

func TestDepositOutOfRange(t *testing.T) {
	accountID := int64(1)

	t.Run("ConvertedLegTooLarge", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)
		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, "0", domain.CurrencyTHB), nil).Once()

		_, _, err := service.Deposit(ctx, accountID, decimal.RequireFromString("999999999999999999"), "USD")

		assert.ErrorIs(t, err, util.ErrInvalidAmount)
		m.accountRepo.AssertNotCalled(t, "GetAccountsForUpdate", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("BalanceOverflowRollsBack", func(t *testing.T) {
		ctx := context.Background()
		service, m := newLedgerUnderTest(t, nil)
		start := "999999999999999999.00"
		m.accountRepo.On("GetAccountByID", ctx, m.dbExecutor, accountID).Return(account(accountID, start, domain.CurrencyTHB), nil).Once()
		m.accountRepo.On("GetAccountsForUpdate", ctx, m.tx, []int64{accountID}).
			Return(map[int64]*domain.Account{accountID: account(accountID, start, domain.CurrencyTHB)}, nil).Once()
		m.accountRepo.On("UpdateAccountBalance", ctx, m.tx, accountID, mock.Anything).
			Return(fmt.Errorf("update balance of account 1: %w", util.ErrInvalidAmount)).Once()
		m.tx.On("Rollback").Return(nil).Once()

		_, _, err := service.Deposit(ctx, accountID, decimal.NewFromInt(5), "THB")

		assert.ErrorIs(t, err, util.ErrInvalidAmount)
		m.tx.AssertNotCalled(t, "Commit")
		m.transactionRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
		m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})
}
