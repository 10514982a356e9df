// internal/service/memstore_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/events"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"

	"github.com/shopspring/decimal"
)

var errNoSQL = errors.New("memStore does not run SQL")

// memStore is an in-memory AccountRepository and TransactionRepository with
// commit/rollback semantics. It does not lock anything: serialization is left
// to the service under test.
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]domain.Account
	txns     []domain.Transaction
	nextID   int64

	// failCreateTransaction makes the next CreateTransaction call fail.
	failCreateTransaction error
}

func newMemStore(accounts ...*domain.Account) *memStore {
	s := &memStore{accounts: make(map[int64]domain.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = *a
	}
	return s
}

// memTx buffers writes until Commit.
type memTx struct {
	store    *memStore
	accounts map[int64]domain.Account
	deleted  map[int64]bool
	txns     []domain.Transaction
	done     bool
}

func (s *memStore) begin(context.Context, db.DBTxBeginner) (db.TxController, error) {
	return &memTx{store: s, accounts: make(map[int64]domain.Account), deleted: make(map[int64]bool)}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, a := range t.accounts {
		t.store.accounts[id] = a
	}
	for id := range t.deleted {
		delete(t.store.accounts, id)
	}
	t.store.txns = append(t.store.txns, t.txns...)
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return nil
}

func (t *memTx) GetContext(context.Context, interface{}, string, ...interface{}) error    { return errNoSQL }
func (t *memTx) SelectContext(context.Context, interface{}, string, ...interface{}) error { return errNoSQL }
func (t *memTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (t *memTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

func (s *memStore) lookup(q repository.DBExecutor, id int64) (domain.Account, bool) {
	if tx, ok := q.(*memTx); ok {
		if tx.deleted[id] {
			return domain.Account{}, false
		}
		if a, ok := tx.accounts[id]; ok {
			return a, true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *memStore) CreateAccount(_ context.Context, q repository.DBExecutor, account *domain.Account) error {
	s.mu.Lock()
	s.nextID++
	account.ID = 1000 + s.nextID
	s.mu.Unlock()
	q.(*memTx).accounts[account.ID] = *account
	return nil
}

func (s *memStore) GetAccountByID(_ context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	a, ok := s.lookup(q, id)
	if !ok {
		return nil, util.ErrAccountNotFound
	}
	return &a, nil
}

func (s *memStore) GetAccountsForUpdate(ctx context.Context, q repository.DBExecutor, ids ...int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		a, err := s.GetAccountByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func (s *memStore) UpdateAccountBalance(_ context.Context, q repository.DBExecutor, id int64, balance decimal.Decimal) error {
	a, ok := s.lookup(q, id)
	if !ok {
		return util.ErrAccountNotFound
	}
	if balance.IsNegative() {
		return util.ErrInsufficientFunds
	}
	a.Balance = balance
	q.(*memTx).accounts[id] = a
	return nil
}

func (s *memStore) ListAccounts(_ context.Context, _ repository.DBExecutor, filter repository.AccountFilter) ([]domain.Account, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Account{}
	for _, a := range s.accounts {
		if filter.OwnerID == nil || a.OwnerID == *filter.OwnerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *memStore) DeleteAccount(_ context.Context, q repository.DBExecutor, id int64) error {
	tx := q.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return util.ErrAccountNotFound
	}
	kept := s.txns[:0]
	for _, txn := range s.txns {
		if txn.AccountID == id {
			continue
		}
		if txn.ToAccountID != nil && *txn.ToAccountID == id {
			txn.ToAccountID = nil
		}
		kept = append(kept, txn)
	}
	s.txns = kept
	tx.deleted[id] = true
	return nil
}

func (s *memStore) CreateTransaction(_ context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	s.mu.Lock()
	if err := s.failCreateTransaction; err != nil {
		s.failCreateTransaction = nil
		s.mu.Unlock()
		return err
	}
	s.nextID++
	transaction.ID = s.nextID
	s.mu.Unlock()

	tx := q.(*memTx)
	tx.txns = append(tx.txns, *transaction)
	return nil
}

func (s *memStore) ListTransactions(_ context.Context, _ repository.DBExecutor, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Transaction{}
	for _, txn := range s.txns {
		if filter.AccountID != nil && txn.AccountID != *filter.AccountID {
			continue
		}
		if filter.Type != nil && txn.Type != *filter.Type {
			continue
		}
		out = append(out, txn)
	}
	return out, int64(len(out)), nil
}

func (s *memStore) balance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

func (s *memStore) transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.txns...)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransactionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
