package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"walletcore/pkg/account"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// OnChainState is the private state of the on-chain engine
type OnChainState struct {
	Address string
	// FeeBalance is the balance of the fee asset when it differs from the
	// sent asset
	FeeBalance *money.Money
}

func (OnChainState) EngineName() string { return "onchain" }

// OnChainEngine sends self-custody funds to an address through a signer
type OnChainEngine struct {
	base
	signer      OnChainSigner
	address     string
	targetLabel string
	memo        string
	minLimit    *money.Money
	maxLimit    *money.Money
	levels      []tx.FeeLevel
}

// OnChainOption configures an OnChainEngine
type OnChainOption func(*OnChainEngine)

// WithLimits bounds the amount. Unregulated assets have no limits.
func WithLimits(minLimit, maxLimit *money.Money) OnChainOption {
	return func(e *OnChainEngine) {
		e.minLimit = minLimit
		e.maxLimit = maxLimit
	}
}

// WithFeeLevels restricts the levels offered by the signer
func WithFeeLevels(levels ...tx.FeeLevel) OnChainOption {
	return func(e *OnChainEngine) {
		e.levels = levels
	}
}

// WithMemo preloads the memo, e.g. a destination tag from the target
func WithMemo(memo string) OnChainOption {
	return func(e *OnChainEngine) {
		e.memo = memo
	}
}

// NewOnChainEngine sends from source to address using signer
func NewOnChainEngine(source account.Source, target account.Target, address string, signer OnChainSigner,
	rates tx.RateProvider, userFiat money.Currency, opts ...OnChainOption) *OnChainEngine {
	e := &OnChainEngine{
		base:        newBase("onchain", source, rates, userFiat),
		signer:      signer,
		address:     address,
		targetLabel: target.Label(),
		levels:      signer.FeeLevels(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *OnChainEngine) TargetCurrency() money.Currency { return e.signer.Asset() }

func (e *OnChainEngine) tokenFee() bool {
	return e.signer.FeeAsset() != e.signer.Asset()
}

func (e *OnChainEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return tx.PendingTx{}, fmt.Errorf("balances: %w", err)
	}

	sel := tx.NewFeeSelection(e.levels...)
	if e.tokenFee() {
		feeAsset := e.signer.FeeAsset()
		sel.Asset = &feeAsset
	}
	if sel.Supports(tx.FeeLevelCustom) {
		limits, err := e.signer.CustomFeeLimits(ctx)
		if err != nil {
			e.log.Warn("custom fee limits unavailable", zap.Error(err))
		}
		sel.CustomLimits = limits
	}

	feeZero := money.Zero(e.signer.FeeAsset())
	ptx := tx.PendingTx{
		Amount:              money.Zero(e.signer.Asset()),
		TotalBalance:        total,
		AvailableBalance:    actionable,
		FeeAmount:           feeZero,
		FeeForFullAvailable: feeZero,
		FeeSelection:        sel,
		MinLimit:            e.minLimit,
		MaxLimit:            e.maxLimit,
		SelectedFiat:        e.userFiat,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         OnChainState{Address: e.address},
	}
	if e.signer.SupportsMemo() || e.memo != "" {
		ptx = ptx.WithOption(tx.MemoOption{Text: e.memo})
	}
	return ptx, nil
}

// UpdateAmount re-reads balances and fees for amount
func (e *OnChainEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}

	fee, feeFull, err := e.estimateFees(ctx, amount, actionable, ptx.FeeSelection)
	if err != nil {
		return ptx, err
	}

	state, _ := tx.StateAs[OnChainState](ptx)
	available := actionable
	if e.tokenFee() {
		feeBalance, err := e.signer.FeeBalance(ctx)
		if err != nil {
			return ptx, fmt.Errorf("fee balance: %w", err)
		}
		state.FeeBalance = &feeBalance
	} else {
		available = clamp(actionable.Sub(feeFull), total)
	}

	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = available
	out.FeeAmount = fee
	out.FeeForFullAvailable = feeFull
	out.EngineState = state
	out.FeeSelection.State = e.feeState(out)
	return out, nil
}

// estimateFees prices amount and the full actionable balance. A custom fee
// under the minimum is not priced; ValidateAll rejects it.
func (e *OnChainEngine) estimateFees(ctx context.Context, amount, actionable money.Money, sel tx.FeeSelection) (money.Money, money.Money, error) {
	if sel.SelectedLevel == tx.FeeLevelCustom && tx.CustomFeeState(sel.CustomAmount, sel.CustomLimits) == tx.FeeUnderMinLimit {
		zero := money.Zero(e.signer.FeeAsset())
		return zero, zero, nil
	}
	fee, err := e.signer.EstimateFee(ctx, amount, sel.SelectedLevel, sel.CustomAmount)
	if err != nil {
		return money.Money{}, money.Money{}, fmt.Errorf("estimate fee: %w", err)
	}
	feeFull, err := e.signer.EstimateFee(ctx, actionable, sel.SelectedLevel, sel.CustomAmount)
	if err != nil {
		return money.Money{}, money.Money{}, fmt.Errorf("estimate fee: %w", err)
	}
	return fee, feeFull, nil
}

func (e *OnChainEngine) feeState(ptx tx.PendingTx) tx.FeeState {
	sel := ptx.FeeSelection
	if sel.SelectedLevel == tx.FeeLevelCustom {
		return tx.CustomFeeState(sel.CustomAmount, sel.CustomLimits)
	}
	if ptx.AvailableBalance.LessThan(ptx.Amount) {
		return tx.FeeTooHigh
	}
	return tx.FeeDetails
}

// UpdateFeeLevel applies the fee transition policy. Identity transitions
// return ptx untouched.
func (e *OnChainEngine) UpdateFeeLevel(ctx context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	sel, err := ptx.FeeSelection.Transition(level, custom)
	if err != nil {
		return ptx, err
	}
	if !ptx.FeeSelection.HasChanged(level, custom) {
		return ptx, nil
	}

	out := ptx.Clone()
	out.FeeSelection = sel
	return e.UpdateAmount(ctx, out.Amount, out)
}

// UpdateOption routes fee selection changes through the fee policy
func (e *OnChainEngine) UpdateOption(ctx context.Context, ptx tx.PendingTx, opt tx.Option) (tx.PendingTx, error) {
	fs, ok := opt.(tx.FeeSelectionOption)
	if !ok {
		return ptx.WithOption(opt), nil
	}

	out, err := e.UpdateFeeLevel(ctx, ptx, fs.Selection.SelectedLevel, fs.Selection.CustomAmount)
	if err != nil {
		return ptx, err
	}
	out, err = e.ValidateAmount(ctx, out)
	if err != nil {
		return ptx, err
	}
	return e.BuildConfirmations(ctx, out)
}

func (e *OnChainEngine) ValidateAmount(_ context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return ptx.WithValidity(e.amountState(ptx)), nil
}

func (e *OnChainEngine) amountState(ptx tx.PendingTx) tx.ValidationState {
	amount := ptx.Amount
	switch {
	case !amount.IsPositive():
		return tx.ValidationInvalidAmount
	case ptx.MinLimit != nil && amount.LessThan(*ptx.MinLimit):
		return tx.ValidationUnderMinLimit
	case ptx.MaxLimit != nil && amount.GreaterThan(*ptx.MaxLimit):
		return tx.ValidationOverMaxLimit
	case amount.GreaterThan(ptx.AvailableBalance):
		return tx.ValidationInsufficientFunds
	}

	if e.tokenFee() {
		state, _ := tx.StateAs[OnChainState](ptx)
		if state.FeeBalance != nil && ptx.FeeAmount.GreaterThan(*state.FeeBalance) {
			return tx.ValidationInsufficientGas
		}
	}
	return tx.ValidationCanExecute
}

// ValidateAll adds the option and in-flight checks to the amount checks
func (e *OnChainEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	state := e.amountState(ptx)
	if state != tx.ValidationCanExecute {
		return ptx.WithValidity(state), nil
	}

	if ptx.FeeSelection.SelectedLevel == tx.FeeLevelCustom &&
		tx.CustomFeeState(ptx.FeeSelection.CustomAmount, ptx.FeeSelection.CustomLimits) == tx.FeeUnderMinLimit {
		return ptx.WithValidity(tx.ValidationOptionInvalid), nil
	}
	if memo, ok := tx.OptionAs[tx.MemoOption](ptx, tx.OptionMemo); ok && memo.Required && memo.Text == "" {
		return ptx.WithValidity(tx.ValidationOptionInvalid), nil
	}

	pending, err := e.signer.HasPendingTx(ctx)
	if err != nil {
		return ptx, fmt.Errorf("pending transactions: %w", err)
	}
	if pending {
		return ptx.WithValidity(tx.ValidationHasTxInFlight), nil
	}
	return ptx.WithValidity(tx.ValidationCanExecute), nil
}

func (e *OnChainEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	opts := []tx.Option{
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.FeeSelectionOption{
			Selection: ptx.FeeSelection,
			FeeAmount: ptx.FeeAmount,
			FiatFee:   e.fiatValue(ctx, ptx.FeeAmount),
		},
		tx.FeedTotalOption{
			Amount:     ptx.Amount,
			Fee:        ptx.FeeAmount,
			FiatAmount: e.fiatValue(ctx, ptx.Amount),
			FiatFee:    e.fiatValue(ctx, ptx.FeeAmount),
		},
	}
	if memo, ok := tx.OptionAs[tx.MemoOption](ptx, tx.OptionMemo); ok {
		opts = append(opts, memo)
	}
	return rebuild(ptx, opts...), nil
}

// Execute builds, signs and broadcasts the transfer
func (e *OnChainEngine) Execute(ctx context.Context, ptx tx.PendingTx, secondPassword string) (tx.TxResult, error) {
	state, _ := tx.StateAs[OnChainState](ptx)
	address := state.Address
	if address == "" {
		address = e.address
	}
	memo := keep(ptx, tx.OptionMemo, tx.MemoOption{}).Text

	utx, err := e.signer.BuildTransaction(ctx, SendRequest{
		To:        address,
		Amount:    ptx.Amount,
		Level:     ptx.FeeSelection.SelectedLevel,
		CustomFee: ptx.FeeSelection.CustomAmount,
		Memo:      memo,
	})
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("build: %w", err))
	}

	hash, err := e.signer.SignAndBroadcast(ctx, utx, secondPassword)
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("broadcast: %w", err))
	}
	return tx.Hashed(hash, ptx.Amount), nil
}
