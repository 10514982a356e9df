// internal/domain/currency.go
package domain

import (
	"fmt"
	"strings"

	"finflow-ledger/internal/util"
)

// Currency is an ISO 4217 code from the closed set the ledger supports.
type Currency string

const (
	CurrencyTHB Currency = "THB"
	CurrencyUSD Currency = "USD"
)

// BalanceScale is the number of fractional digits kept on balances and transaction amounts.
const BalanceScale int32 = 2

// SupportedCurrencies lists every currency an account may be opened in.
func SupportedCurrencies() []Currency {
	return []Currency{CurrencyTHB, CurrencyUSD}
}

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyTHB, CurrencyUSD:
		return true
	default:
		return false
	}
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", util.ErrUnsupportedCurrency, s)
	}
	return c, nil
}
