// internal/currency/rates_file.go
package currency

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"finflow-ledger/internal/domain"
)

// ratesFile is the on-disk layout:
//
//	rates:
//	  - from: USD
//	    to: THB
//	    rate: "30"
type ratesFile struct {
	Rates []struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
		Rate string `yaml:"rate"`
	} `yaml:"rates"`
}

// LoadRates decodes a YAML rate table. Rates are quoted strings so they stay exact.
func LoadRates(r io.Reader) (Rates, error) {
	var file ratesFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("rates file defines no rates")
	}

	rates := make(Rates, len(file.Rates))
	for i, entry := range file.Rates {
		from, err := domain.ParseCurrency(entry.From)
		if err != nil {
			return nil, fmt.Errorf("rates[%d].from: %w", i, err)
		}
		to, err := domain.ParseCurrency(entry.To)
		if err != nil {
			return nil, fmt.Errorf("rates[%d].to: %w", i, err)
		}
		rate, err := decimal.NewFromString(entry.Rate)
		if err != nil {
			return nil, fmt.Errorf("rates[%d].rate: %w", i, err)
		}
		pair := Pair{From: from, To: to}
		if _, dup := rates[pair]; dup {
			return nil, fmt.Errorf("rates[%d]: duplicate pair %s", i, pair)
		}
		rates[pair] = rate
	}
	return rates, nil
}

// LoadRatesFile reads a rate table from path; an empty path yields DefaultRates.
func LoadRatesFile(path string) (Rates, error) {
	if path == "" {
		return DefaultRates(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rates file: %w", err)
	}
	defer f.Close()
	return LoadRates(f)
}
