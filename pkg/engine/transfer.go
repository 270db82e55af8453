package engine

import (
	"context"
	"fmt"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// TransferEngine moves custodial funds of one product to an address. The
// balance is checked as soon as the amount is entered.
type TransferEngine struct {
	base
	backend     TransferBackend
	product     custodial.Product
	address     string
	targetLabel string
}

// NewTransferEngine moves funds of product from source to address
func NewTransferEngine(source account.Source, target account.Target, address string, product custodial.Product,
	backend TransferBackend, rates tx.RateProvider, userFiat money.Currency) *TransferEngine {
	return &TransferEngine{
		base:        newBase("transfer", source, rates, userFiat),
		backend:     backend,
		product:     product,
		address:     address,
		targetLabel: target.Label(),
	}
}

func (e *TransferEngine) TargetCurrency() money.Currency { return e.source.Currency() }

func (e *TransferEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return tx.PendingTx{}, fmt.Errorf("balances: %w", err)
	}
	asset := e.source.Currency()
	return tx.PendingTx{
		Amount:              money.Zero(asset),
		TotalBalance:        total,
		AvailableBalance:    actionable,
		FeeAmount:           money.Zero(asset),
		FeeForFullAvailable: money.Zero(asset),
		FeeSelection:        tx.NoFees(),
		SelectedFiat:        e.userFiat,
		ValidationState:     tx.ValidationUninitialised,
	}, nil
}

// UpdateAmount fails with tx.ErrInsufficientFunds when amount exceeds the
// actionable balance
func (e *TransferEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}
	if amount.GreaterThan(actionable) {
		return ptx, fmt.Errorf("%w: %s requested, %s available", tx.ErrInsufficientFunds, amount.Display(), actionable.Display())
	}

	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = actionable
	return out, nil
}

func (e *TransferEngine) UpdateFeeLevel(_ context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	if _, err := ptx.FeeSelection.Transition(level, custom); err != nil {
		return ptx, err
	}
	return ptx, nil
}

func (e *TransferEngine) ValidateAmount(_ context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	switch {
	case !ptx.Amount.IsPositive():
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	case ptx.Amount.GreaterThan(ptx.AvailableBalance):
		return ptx.WithValidity(tx.ValidationInsufficientFunds), nil
	}
	return ptx.WithValidity(tx.ValidationCanExecute), nil
}

func (e *TransferEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return e.ValidateAmount(ctx, ptx)
}

func (e *TransferEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return rebuild(ptx,
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.TotalOption{Amount: ptx.Amount, Fiat: e.fiatValue(ctx, ptx.Amount)},
	), nil
}

// Execute sends one transfer request. Calling it twice sends twice.
func (e *TransferEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	ref, err := e.backend.TransferFunds(ctx, e.product, ptx.Amount, e.address)
	if err != nil {
		return tx.TxResult{}, e.execFailed(err)
	}
	return tx.Unhashed(ref, ptx.Amount), nil
}
