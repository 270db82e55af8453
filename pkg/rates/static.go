package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"walletcore/pkg/money"
)

// Static serves a fixed table of rates, keyed "BTC-USD". The inverse of
// every entry is served too.
type Static struct {
	rates map[string]decimal.Decimal
}

// NewStatic parses a table such as the rates.static config section. Keys
// are case-insensitive.
func NewStatic(table map[string]string) (*Static, error) {
	s := &Static{rates: make(map[string]decimal.Decimal, len(table))}
	for key, value := range table {
		parts := strings.Split(strings.ToUpper(strings.TrimSpace(key)), "-")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid rate key %q, want FROM-TO", key)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", key, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", key)
		}
		s.rates[parts[0]+"-"+parts[1]] = rate
	}
	return s, nil
}

func (s *Static) Rate(_ context.Context, from, to money.Currency) (money.ExchangeRate, error) {
	if from == to {
		return identity(from)
	}
	if r, ok := s.rates[pairKey(from, to)]; ok {
		return money.NewRate(from, to, r)
	}
	if r, ok := s.rates[pairKey(to, from)]; ok {
		inv, err := money.NewRate(to, from, r)
		if err != nil {
			return money.ExchangeRate{}, err
		}
		return inv.Inverse(), nil
	}
	return money.ExchangeRate{}, noRate(from, to)
}
