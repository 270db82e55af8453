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

// InterestDepositEngine moves self-custody funds into the interest account
// through a wrapped on-chain engine restricted to the Regular fee level
type InterestDepositEngine struct {
	onChain *OnChainEngine
	backend InterestBackend
	log     *zap.Logger
}

// NewInterestDepositEngine sends to the interest account's deposit address
func NewInterestDepositEngine(source account.Source, target account.Target, address string, signer OnChainSigner,
	backend InterestBackend, rates tx.RateProvider, userFiat money.Currency) *InterestDepositEngine {
	onChain := NewOnChainEngine(source, target, address, signer, rates, userFiat, WithFeeLevels(tx.FeeLevelRegular))
	onChain.name = "interest-deposit"
	return &InterestDepositEngine{
		onChain: onChain,
		backend: backend,
		log:     onChain.log,
	}
}

func (e *InterestDepositEngine) Name() string                   { return e.onChain.Name() }
func (e *InterestDepositEngine) SourceCurrency() money.Currency { return e.onChain.SourceCurrency() }
func (e *InterestDepositEngine) TargetCurrency() money.Currency { return e.onChain.TargetCurrency() }
func (e *InterestDepositEngine) CanTransactFiat() bool          { return false }

func (e *InterestDepositEngine) minLimit(ctx context.Context) *money.Money {
	limits, err := e.backend.GetInterestLimits(ctx, e.onChain.signer.Asset())
	if err != nil {
		e.log.Warn("interest limits unavailable", zap.Error(err))
		return nil
	}
	if limits == nil {
		return nil
	}
	if err := limits.In(e.onChain.signer.Asset()); err != nil {
		e.log.Warn("interest limits ignored", zap.Error(err))
		return nil
	}
	return limits.Min.Ptr()
}

func (e *InterestDepositEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	ptx, err := e.onChain.Initialize(ctx)
	if err != nil {
		return ptx, err
	}
	ptx.MinLimit = e.minLimit(ctx)
	ptx.FeeSelection = tx.NewFeeSelection(tx.FeeLevelRegular)
	if e.onChain.tokenFee() {
		feeAsset := e.onChain.signer.FeeAsset()
		ptx.FeeSelection.Asset = &feeAsset
	}
	return ptx, nil
}

func (e *InterestDepositEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	out, err := e.onChain.UpdateAmount(ctx, amount, ptx)
	if err != nil {
		return ptx, err
	}
	if out.MinLimit == nil {
		out.MinLimit = e.minLimit(ctx)
	}
	return out, nil
}

func (e *InterestDepositEngine) UpdateFeeLevel(ctx context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	return e.onChain.UpdateFeeLevel(ctx, ptx, level, custom)
}

// UpdateOption stores agreement changes and leaves the rest to the
// on-chain engine
func (e *InterestDepositEngine) UpdateOption(ctx context.Context, ptx tx.PendingTx, opt tx.Option) (tx.PendingTx, error) {
	switch opt.(type) {
	case tx.InterestTermsOption, tx.InterestTransferOption:
		return ptx.WithOption(opt), nil
	}
	return e.onChain.UpdateOption(ctx, ptx, opt)
}

func (e *InterestDepositEngine) underMin(ptx tx.PendingTx) bool {
	return ptx.Amount.IsPositive() && ptx.MinLimit != nil && ptx.Amount.LessThan(*ptx.MinLimit)
}

func (e *InterestDepositEngine) ValidateAmount(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	if e.underMin(ptx) {
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	}
	return e.onChain.ValidateAmount(ctx, ptx)
}

// ValidateAll requires both agreements on top of the on-chain checks
func (e *InterestDepositEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	if e.underMin(ptx) {
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	}
	out, err := e.onChain.ValidateAll(ctx, ptx)
	if err != nil {
		return ptx, err
	}
	if out.ValidationState != tx.ValidationCanExecute {
		return out, nil
	}

	terms := keep(out, tx.OptionAgreementInterestTerms, tx.InterestTermsOption{})
	transfer := keep(out, tx.OptionAgreementInterestTransfer, tx.InterestTransferOption{})
	if !terms.Accepted || !transfer.Accepted {
		return out.WithValidity(tx.ValidationOptionInvalid), nil
	}
	return out, nil
}

// BuildConfirmations keeps the on-chain From, To and FeedTotal items and
// replaces the fee selector with a plain network fee and the agreements
func (e *InterestDepositEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	out, err := e.onChain.BuildConfirmations(ctx, ptx)
	if err != nil {
		return ptx, err
	}
	out = out.WithoutOption(tx.OptionFeeSelection).WithoutOption(tx.OptionDescription)

	terms := keep(ptx, tx.OptionAgreementInterestTerms, tx.InterestTermsOption{})
	transfer := keep(ptx, tx.OptionAgreementInterestTransfer, tx.InterestTransferOption{})
	transfer.Amount = ptx.Amount

	out = out.
		WithOption(tx.NetworkFeeOption{Fee: ptx.FeeAmount, FiatFee: e.onChain.fiatValue(ctx, ptx.FeeAmount)}).
		WithOption(terms).
		WithOption(transfer)
	return out.WithValidity(out.ValidationState), nil
}

func (e *InterestDepositEngine) Execute(ctx context.Context, ptx tx.PendingTx, secondPassword string) (tx.TxResult, error) {
	return e.onChain.Execute(ctx, ptx, secondPassword)
}

// InterestTradingState is the private state of the trading to interest
// engine
type InterestTradingState struct {
	// LimitsLoaded is false until the interest limits were read
	LimitsLoaded bool
}

func (InterestTradingState) EngineName() string { return "interest-trading" }

// InterestTradingEngine moves trading funds into the interest account of
// the same asset with a custodial transfer. Nothing touches the chain, so
// there is no fee.
type InterestTradingEngine struct {
	base
	backend     ProductTransferBackend
	targetLabel string
}

// NewInterestTradingEngine deposits source's trading balance into target
func NewInterestTradingEngine(source account.Source, target account.Target, backend ProductTransferBackend,
	rates tx.RateProvider, userFiat money.Currency) *InterestTradingEngine {
	return &InterestTradingEngine{
		base:        newBase("interest-trading", source, rates, userFiat),
		backend:     backend,
		targetLabel: target.Label(),
	}
}

func (e *InterestTradingEngine) TargetCurrency() money.Currency { return e.source.Currency() }

// minLimit reports the deposit minimum and whether the limits were read.
// An asset without limits has no minimum.
func (e *InterestTradingEngine) minLimit(ctx context.Context) (*money.Money, bool) {
	asset := e.source.Currency()
	limits, err := e.backend.GetInterestLimits(ctx, asset)
	if err != nil {
		e.log.Warn("interest limits unavailable", zap.Error(err))
		return nil, false
	}
	if limits == nil {
		return nil, true
	}
	if err := limits.In(asset); err != nil {
		e.log.Warn("interest limits ignored", zap.Error(err))
		return nil, false
	}
	return limits.Min.Ptr(), true
}

func (e *InterestTradingEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return tx.PendingTx{}, fmt.Errorf("balances: %w", err)
	}
	minLimit, loaded := e.minLimit(ctx)
	return tx.PendingTx{
		Amount:              money.Zero(e.source.Currency()),
		TotalBalance:        total,
		AvailableBalance:    actionable,
		FeeAmount:           money.Zero(e.source.Currency()),
		FeeForFullAvailable: money.Zero(e.source.Currency()),
		FeeSelection:        tx.NoFees(),
		SelectedFiat:        e.userFiat,
		MinLimit:            minLimit,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         InterestTradingState{LimitsLoaded: loaded},
	}, nil
}

func (e *InterestTradingEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	if amount.Currency() != e.source.Currency() {
		return ptx, fmt.Errorf("%w: deposit amount in %s, want %s", tx.ErrCurrencyMismatch, amount.Currency().Code, e.source.Currency().Code)
	}
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}
	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = actionable
	return out, nil
}

func (e *InterestTradingEngine) UpdateFeeLevel(_ context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	if _, err := ptx.FeeSelection.Transition(level, custom); err != nil {
		return ptx, err
	}
	return ptx, nil
}

// ValidateAmount checks balance, then the minimum. Limits that could not
// be read block the deposit.
func (e *InterestTradingEngine) ValidateAmount(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	amount := ptx.Amount
	if !amount.IsPositive() {
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	}
	if amount.GreaterThan(ptx.AvailableBalance) {
		return ptx.WithValidity(tx.ValidationInsufficientFunds), nil
	}

	state, _ := tx.StateAs[InterestTradingState](ptx)
	if !state.LimitsLoaded {
		minLimit, loaded := e.minLimit(ctx)
		if !loaded {
			return ptx.WithValidity(tx.ValidationUnknownError), nil
		}
		ptx = ptx.WithState(InterestTradingState{LimitsLoaded: true})
		ptx.MinLimit = minLimit
	}
	if ptx.MinLimit != nil && amount.LessThan(*ptx.MinLimit) {
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	}
	return ptx.WithValidity(tx.ValidationCanExecute), nil
}

// ValidateAll requires both agreements
func (e *InterestTradingEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	out, err := e.ValidateAmount(ctx, ptx)
	if err != nil || out.ValidationState != tx.ValidationCanExecute {
		return out, err
	}
	terms := keep(out, tx.OptionAgreementInterestTerms, tx.InterestTermsOption{})
	transfer := keep(out, tx.OptionAgreementInterestTransfer, tx.InterestTransferOption{})
	if !terms.Accepted || !transfer.Accepted {
		return out.WithValidity(tx.ValidationOptionInvalid), nil
	}
	return out, nil
}

func (e *InterestTradingEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	terms := keep(ptx, tx.OptionAgreementInterestTerms, tx.InterestTermsOption{})
	transfer := keep(ptx, tx.OptionAgreementInterestTransfer, tx.InterestTransferOption{})
	transfer.Amount = ptx.Amount

	return rebuild(ptx,
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.TotalOption{Amount: ptx.Amount, Fiat: e.fiatValue(ctx, ptx.Amount)},
		terms,
		transfer,
	), nil
}

// Execute moves the funds from the trading product into the interest
// product
func (e *InterestTradingEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	ref, err := e.backend.TransferBetweenProducts(ctx, ptx.Amount, custodial.ProductTrading, custodial.ProductInterest)
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("interest transfer: %w", err))
	}
	return tx.Unhashed(ref, ptx.Amount), nil
}
