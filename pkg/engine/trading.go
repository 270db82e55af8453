package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// TradingState is the private state of the trading to on-chain engine
type TradingState struct {
	Address string
	Memo    string
}

func (TradingState) EngineName() string { return "trading" }

// TradingEngine withdraws custodial trading funds to an on-chain address.
// The backend absorbs the network fee, so the fee is always zero.
type TradingEngine struct {
	base
	backend       WithdrawBackend
	address       string
	memo          string
	targetLabel   string
	noteSupported bool
}

// NewTradingEngine withdraws from source to address
func NewTradingEngine(source account.Source, target account.Target, address, memo string, backend WithdrawBackend,
	rates tx.RateProvider, userFiat money.Currency, noteSupported bool) *TradingEngine {
	return &TradingEngine{
		base:          newBase("trading", source, rates, userFiat),
		backend:       backend,
		address:       address,
		memo:          memo,
		targetLabel:   target.Label(),
		noteSupported: noteSupported,
	}
}

func (e *TradingEngine) TargetCurrency() money.Currency { return e.source.Currency() }

func (e *TradingEngine) minLimit(ctx context.Context) *money.Money {
	fees, err := e.backend.GetCryptoWithdrawFees(ctx, e.source.Currency(), custodial.ProductTrading)
	if err != nil {
		e.log.Warn("withdraw limits unavailable", zap.Error(err))
		return nil
	}
	if fees.MinLimit.Currency() != e.source.Currency() {
		e.log.Warn("withdraw minimum ignored",
			zap.String("asset", e.source.Currency().Code), zap.String("min_currency", fees.MinLimit.Currency().Code))
		return nil
	}
	return fees.MinLimit.Ptr()
}

func (e *TradingEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
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
		MinLimit:            e.minLimit(ctx),
		SelectedFiat:        e.userFiat,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         TradingState{Address: e.address, Memo: e.memo},
	}, nil
}

func (e *TradingEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}
	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = actionable
	out.FeeAmount = money.Zero(amount.Currency())
	out.FeeForFullAvailable = money.Zero(amount.Currency())
	if out.MinLimit == nil {
		out.MinLimit = e.minLimit(ctx)
	}
	return out, nil
}

// UpdateFeeLevel only accepts the identity transition on None
func (e *TradingEngine) UpdateFeeLevel(_ context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	if _, err := ptx.FeeSelection.Transition(level, custom); err != nil {
		return ptx, err
	}
	return ptx, nil
}

func (e *TradingEngine) ValidateAmount(_ context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	amount := ptx.Amount
	valid := amount.IsPositive() &&
		amount.LessOrEqual(ptx.AvailableBalance) &&
		(ptx.MinLimit == nil || amount.GreaterOrEqual(*ptx.MinLimit))
	switch {
	case valid:
		return ptx.WithValidity(tx.ValidationCanExecute), nil
	case amount.GreaterThan(ptx.AvailableBalance):
		return ptx.WithValidity(tx.ValidationInsufficientFunds), nil
	default:
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	}
}

func (e *TradingEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return e.ValidateAmount(ctx, ptx)
}

func (e *TradingEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	opts := []tx.Option{
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.FeedTotalOption{
			Amount:     ptx.Amount,
			Fee:        ptx.FeeAmount,
			FiatAmount: e.fiatValue(ctx, ptx.Amount),
			FiatFee:    e.fiatValue(ctx, ptx.FeeAmount),
		},
	}
	if e.noteSupported {
		opts = append(opts, keep(ptx, tx.OptionDescription, tx.DescriptionOption{}))
	}
	return rebuild(ptx, opts...), nil
}

// Execute asks the backend to send the funds and returns its reference
func (e *TradingEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	state, _ := tx.StateAs[TradingState](ptx)
	if state.Address == "" {
		state.Address = e.address
	}
	note := keep(ptx, tx.OptionDescription, tx.DescriptionOption{}).Text

	ref, err := e.backend.TransferFundsToWallet(ctx, ptx.Amount, state.Address, state.Memo, note)
	if err != nil {
		return tx.TxResult{}, e.execFailed(err)
	}
	return tx.Unhashed(ref, ptx.Amount), nil
}
