package engine

import (
	"context"

	"go.uber.org/zap"

	"walletcore/pkg/account"
	"walletcore/pkg/logger"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// base holds what every engine shares: the source, the rate context and a
// logger
type base struct {
	name     string
	source   account.Source
	rates    tx.RateProvider
	userFiat money.Currency
	log      *zap.Logger
}

func newBase(name string, source account.Source, rates tx.RateProvider, userFiat money.Currency) base {
	return base{
		name:     name,
		source:   source,
		rates:    rates,
		userFiat: userFiat,
		log:      logger.Named("engine").With(zap.String("engine", name), zap.String("source", source.Label())),
	}
}

func (b *base) Name() string                   { return b.name }
func (b *base) SourceCurrency() money.Currency { return b.source.Currency() }
func (b *base) CanTransactFiat() bool          { return false }

// UpdateOption stores opt as is
func (b *base) UpdateOption(_ context.Context, ptx tx.PendingTx, opt tx.Option) (tx.PendingTx, error) {
	return ptx.WithOption(opt), nil
}

// balances reads both source balances and clamps actionable to total
func (b *base) balances(ctx context.Context) (money.Money, money.Money, error) {
	total, err := b.source.Balance(ctx)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	actionable, err := b.source.ActionableBalance(ctx)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	return total, clamp(actionable, total), nil
}

// fiatValue converts m to the user's fiat. Display only: failures are
// logged and yield nil.
func (b *base) fiatValue(ctx context.Context, m money.Money) *money.Money {
	if m.Currency() == b.userFiat {
		return m.Ptr()
	}
	if b.rates == nil || m.Currency().Code == "" {
		return nil
	}
	rate, err := b.rates.Rate(ctx, m.Currency(), b.userFiat)
	if err != nil {
		b.log.Debug("no fiat rate", zap.String("currency", m.Currency().Code), zap.Error(err))
		return nil
	}
	v, err := rate.Convert(m)
	if err != nil {
		return nil
	}
	return &v
}

// clamp bounds v to [0, upper]
func clamp(v, upper money.Money) money.Money {
	if v.IsNegative() {
		return money.Zero(v.Currency())
	}
	if v.GreaterThan(upper) {
		return upper
	}
	return v
}

// keep returns the value of kind k already on ptx, or def
func keep[T tx.Option](ptx tx.PendingTx, k tx.OptionKind, def T) T {
	if v, ok := tx.OptionAs[T](ptx, k); ok {
		return v
	}
	return def
}

// rebuild replaces the confirmations and refreshes the error notice
func rebuild(ptx tx.PendingTx, opts ...tx.Option) tx.PendingTx {
	out := ptx.WithConfirmations(opts...)
	return out.WithValidity(out.ValidationState)
}

func (b *base) execFailed(err error) error {
	return &tx.ExecutionError{Engine: b.name, Err: err}
}
