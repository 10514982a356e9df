// internal/currency/converter.go
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/util"
)

// Pair is a directed conversion From -> To.
type Pair struct {
	From domain.Currency
	To   domain.Currency
}

func (p Pair) String() string {
	return fmt.Sprintf("%s->%s", p.From, p.To)
}

// Rates maps a directed pair to the multiplier applied to amounts in Pair.From.
type Rates map[Pair]decimal.Decimal

// DefaultRates returns the fixed table used when no rates file is configured.
func DefaultRates() Rates {
	return Rates{
		{From: domain.CurrencyUSD, To: domain.CurrencyTHB}: decimal.NewFromInt(30),
		{From: domain.CurrencyTHB, To: domain.CurrencyUSD}: decimal.RequireFromString("0.033"),
	}
}

// Converter converts amounts between currencies with a fixed rate table.
// It holds no mutable state and is safe for concurrent use.
type Converter struct {
	rates map[Pair]decimal.Decimal
}

// NewConverter copies rates into a new Converter.
func NewConverter(rates Rates) (*Converter, error) {
	table := make(map[Pair]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		if !pair.From.Valid() || !pair.To.Valid() {
			return nil, fmt.Errorf("rate %s: %w", pair, util.ErrUnsupportedCurrency)
		}
		if pair.From == pair.To {
			return nil, fmt.Errorf("rate %s: identity pairs are implicit", pair)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate %s: must be positive, got %s", pair, rate)
		}
		table[pair] = rate
	}
	return &Converter{rates: table}, nil
}

// Convert expresses amount (in from) in to.
// Identical currencies return amount untouched; unknown pairs fail with util.ErrUnsupportedCurrencyPair.
func (c *Converter) Convert(amount decimal.Decimal, from, to domain.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, ok := c.rates[Pair{From: from, To: to}]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s -> %s", util.ErrUnsupportedCurrencyPair, from, to)
	}
	return amount.Mul(rate), nil
}

// Rate returns the multiplier for from -> to.
func (c *Converter) Rate(from, to domain.Currency) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	rate, ok := c.rates[Pair{From: from, To: to}]
	return rate, ok
}

// Rates returns a copy of the table.
func (c *Converter) Rates() Rates {
	out := make(Rates, len(c.rates))
	for pair, rate := range c.rates {
		out[pair] = rate
	}
	return out
}
