// Package rates prices one currency in another for the transaction
// processor. Providers are combined with Chain and wrapped in a Cache.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// ErrNoRate is returned when a provider does not know a pair
var ErrNoRate = errors.New("no rate")

func pairKey(from, to money.Currency) string {
	return strings.ToUpper(from.Code) + "-" + strings.ToUpper(to.Code)
}

func noRate(from, to money.Currency) error {
	return fmt.Errorf("%w for %s", ErrNoRate, pairKey(from, to))
}

func identity(c money.Currency) (money.ExchangeRate, error) {
	return money.NewRate(c, c, decimal.NewFromInt(1))
}

// Chain asks each provider in turn and returns the first rate found
type Chain []tx.RateProvider

func (c Chain) Rate(ctx context.Context, from, to money.Currency) (money.ExchangeRate, error) {
	if from == to {
		return identity(from)
	}
	var errs []error
	for _, p := range c {
		r, err := p.Rate(ctx, from, to)
		if err == nil {
			return r, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return money.ExchangeRate{}, ctxErr
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return money.ExchangeRate{}, noRate(from, to)
	}
	return money.ExchangeRate{}, errors.Join(errs...)
}
