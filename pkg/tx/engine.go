package tx

import (
	"context"

	"walletcore/pkg/money"
)

// Engine implements the rules of one (source, target) pair. Engines are
// bound to a single transaction attempt and are driven by a Processor.
//
// Validate methods encode user input problems in the returned state and
// return errors only for collaborator failures.
type Engine interface {
	Name() string
	SourceCurrency() money.Currency
	// TargetCurrency is the currency the target receives
	TargetCurrency() money.Currency
	CanTransactFiat() bool

	Initialize(ctx context.Context) (PendingTx, error)
	UpdateAmount(ctx context.Context, amount money.Money, ptx PendingTx) (PendingTx, error)
	UpdateFeeLevel(ctx context.Context, ptx PendingTx, level FeeLevel, custom int64) (PendingTx, error)
	UpdateOption(ctx context.Context, ptx PendingTx, opt Option) (PendingTx, error)
	ValidateAmount(ctx context.Context, ptx PendingTx) (PendingTx, error)
	ValidateAll(ctx context.Context, ptx PendingTx) (PendingTx, error)
	BuildConfirmations(ctx context.Context, ptx PendingTx) (PendingTx, error)
	Execute(ctx context.Context, ptx PendingTx, secondPassword string) (TxResult, error)
}

// PostExecutor is implemented by engines with follow-up work after a
// successful execute
type PostExecutor interface {
	PostExecute(ctx context.Context, ptx PendingTx, result TxResult) error
}

// RateProvider returns the price of one unit of from in to
type RateProvider interface {
	Rate(ctx context.Context, from, to money.Currency) (money.ExchangeRate, error)
}

// SecondPasswordPolicy tells the Processor whether execute needs the
// spending password
type SecondPasswordPolicy interface {
	IsSecondPasswordRequired() bool
}

// SecondPasswordFunc adapts a function to SecondPasswordPolicy
type SecondPasswordFunc func() bool

func (f SecondPasswordFunc) IsSecondPasswordRequired() bool { return f() }

// StaticPasswordPolicy is a fixed answer
type StaticPasswordPolicy bool

func (p StaticPasswordPolicy) IsSecondPasswordRequired() bool { return bool(p) }
