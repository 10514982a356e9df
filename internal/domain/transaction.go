// internal/domain/transaction.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations

	"finflow-ledger/internal/util"
)

// TransactionType defines the type of a financial transaction.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

// ParseTransactionType converts a query-string value into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown transaction type %q", util.ErrInvalidInput, s)
	}
	return t, nil
}

// Transaction is an immutable record of one balance movement.
// Amount/Currency are in the primary account's currency; RealAmount/RealCurrency keep what the caller sent.
type Transaction struct {
	ID           int64           `db:"id" json:"id"`                       // Primary key, BIGSERIAL in DB
	AccountID    int64           `db:"account_id" json:"account"`          // Primary account (source of a transfer)
	ToAccountID  *int64          `db:"to_account_id" json:"to_account"`    // Counterparty, transfers only; nulled when that account is deleted
	Amount       decimal.Decimal `db:"amount" json:"amount"`               // Converted amount, NUMERIC(20, 2) in DB
	Currency     Currency        `db:"currency" json:"currency"`           // Primary account's currency at recording time
	RealAmount   decimal.Decimal `db:"real_amount" json:"real_amount"`     // Amount as supplied by the caller
	RealCurrency Currency        `db:"real_currency" json:"real_currency"` // Currency as supplied by the caller
	Type         TransactionType `db:"transaction_type" json:"transaction_type"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// NewTransaction creates a new Transaction instance.
func NewTransaction(
	accountID int64,
	toAccountID *int64,
	amount decimal.Decimal,
	currency Currency,
	realAmount decimal.Decimal,
	realCurrency Currency,
	txType TransactionType,
) *Transaction {
	return &Transaction{
		AccountID:    accountID,
		ToAccountID:  toAccountID,
		Amount:       amount,
		Currency:     currency,
		RealAmount:   realAmount,
		RealCurrency: realCurrency,
		Type:         txType,
		CreatedAt:    time.Now().UTC(),
	}
}
