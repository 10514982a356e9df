// internal/util/errors.go
package util

import "errors"

// Ledger rejection reasons. Every one of them leaves balances and the transaction log untouched.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAccountNotFound         = errors.New("account not found")
	ErrUnsupportedCurrency     = errors.New("unsupported currency")
	ErrUnsupportedCurrencyPair = errors.New("unsupported currency pair")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrSameAccountTransfer     = errors.New("cannot transfer to the same account")
	ErrConcurrencyTimeout      = errors.New("account is busy, retry later")
)

// Common application-specific errors.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEntry     = errors.New("duplicate entry") // For cases like creating a user with existing username
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// IsError reports whether err wraps target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// IsRetryable reports whether the caller may safely repeat the failed operation.
// Only lock contention qualifies: nothing is ever partially applied.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyTimeout)
}
