// internal/domain/account.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations

	"finflow-ledger/internal/util"
)

// AmountLimit is the exclusive upper bound on balances and amounts: NUMERIC(20, 2) keeps 18 integer digits.
var AmountLimit = decimal.New(1, 18)

// Account represents a single-currency balance owned by one user.
type Account struct {
	ID        int64           `db:"id" json:"id"`                 // Primary key, BIGSERIAL in DB
	OwnerID   int64           `db:"owner_id" json:"owner_id"`     // Foreign key to User, never changes
	Balance   decimal.Decimal `db:"balance" json:"balance"`       // Current balance, NUMERIC(20, 2) in DB
	Currency  Currency        `db:"currency" json:"currency"`     // Native currency, immutable after creation
	CreatedAt time.Time       `db:"created_at" json:"created_at"` // Timestamp of creation
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"` // Timestamp of last balance change
}

// NewAccount creates a new Account instance with a zero balance.
func NewAccount(ownerID int64, currency Currency) *Account {
	now := time.Now().UTC()
	return &Account{
		OwnerID:   ownerID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether amount can be taken without the balance going negative.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Credit adds amount (already in the account's currency) to the balance.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now().UTC()
}

// Debit subtracts amount (already in the account's currency) from the balance.
// The balance is left untouched when funds are insufficient.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !a.CanDebit(amount) {
		return util.ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = time.Now().UTC()
	return nil
}
