// internal/events/events.go
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
)

// TransactionEvent announces one committed ledger operation.
type TransactionEvent struct {
	TransactionID int64                  `json:"transaction_id"`
	Type          domain.TransactionType `json:"transaction_type"`
	AccountID     int64                  `json:"account_id"`
	ToAccountID   *int64                 `json:"to_account_id,omitempty"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      domain.Currency        `json:"currency"`
	RealAmount    decimal.Decimal        `json:"real_amount"`
	RealCurrency  domain.Currency        `json:"real_currency"`
	// Balances after the operation, keyed by account id.
	Balances   map[int64]decimal.Decimal `json:"balances"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// NewTransactionEvent builds the event for txn from the accounts it touched.
func NewTransactionEvent(txn *domain.Transaction, accounts ...*domain.Account) TransactionEvent {
	balances := make(map[int64]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = a.Balance
	}
	return TransactionEvent{
		TransactionID: txn.ID,
		Type:          txn.Type,
		AccountID:     txn.AccountID,
		ToAccountID:   txn.ToAccountID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		RealAmount:    txn.RealAmount,
		RealCurrency:  txn.RealCurrency,
		Balances:      balances,
		OccurredAt:    txn.CreatedAt,
	}
}

// Publisher delivers events after the database transaction has committed.
// Delivery is best effort: a failed publish never undoes the operation.
type Publisher interface {
	Publish(ctx context.Context, event TransactionEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
