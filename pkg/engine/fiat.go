package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// FiatState is the private state of the bank transfer engines
type FiatState struct {
	Limits *custodial.Limits
}

func (FiatState) EngineName() string { return "fiat" }

// fiatBase holds what deposits and withdrawals share
type fiatBase struct {
	base
	backend     BankBackend
	targetLabel string
}

func (e *fiatBase) CanTransactFiat() bool { return true }

func (e *fiatBase) fetchLimits(ctx context.Context) *custodial.Limits {
	limits, err := e.backend.GetBankTransferLimits(ctx, e.source.Currency())
	if err != nil {
		e.log.Warn("bank transfer limits unavailable", zap.Error(err))
		return nil
	}
	if err := limits.In(e.source.Currency()); err != nil {
		e.log.Warn("bank transfer limits ignored", zap.Error(err))
		return nil
	}
	return &limits
}

func (e *fiatBase) UpdateFeeLevel(_ context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	if _, err := ptx.FeeSelection.Transition(level, custom); err != nil {
		return ptx, err
	}
	return ptx, nil
}

// limits returns the cached limits, fetching them once more if missing
func (e *fiatBase) limits(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, *custodial.Limits) {
	state, _ := tx.StateAs[FiatState](ptx)
	if state.Limits != nil {
		return ptx, state.Limits
	}
	state.Limits = e.fetchLimits(ctx)
	if state.Limits == nil {
		return ptx, nil
	}
	out := ptx.WithState(state)
	out.MinLimit = state.Limits.Min.Ptr()
	return out, state.Limits
}

func (e *fiatBase) confirmations(ptx tx.PendingTx, completion string) tx.PendingTx {
	return rebuild(ptx,
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.TotalOption{Amount: ptx.Amount, Fiat: ptx.Amount.Ptr()},
		tx.EstimatedCompletionOption{Text: completion},
	)
}

// openBankingCurrencies are paid by bank authorised payments
var openBankingCurrencies = map[string]bool{"EUR": true, "GBP": true}

// FiatDepositEngine pulls fiat from a linked bank into a fiat account
type FiatDepositEngine struct {
	fiatBase
	pollInterval time.Duration
	pollAttempts int
}

// NewFiatDepositEngine deposits from bank into target
func NewFiatDepositEngine(bank account.Source, target account.Target, backend BankBackend,
	rates tx.RateProvider, userFiat money.Currency) *FiatDepositEngine {
	return &FiatDepositEngine{
		fiatBase: fiatBase{
			base:        newBase("fiat-deposit", bank, rates, userFiat),
			backend:     backend,
			targetLabel: target.Label(),
		},
		pollInterval: 2 * time.Second,
		pollAttempts: 15,
	}
}

// WithPolling sets how the open banking authorisation is awaited
func (e *FiatDepositEngine) WithPolling(interval time.Duration, attempts int) *FiatDepositEngine {
	e.pollInterval = interval
	e.pollAttempts = attempts
	return e
}

func (e *FiatDepositEngine) TargetCurrency() money.Currency { return e.source.Currency() }

func (e *FiatDepositEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	fiat := e.source.Currency()
	state := FiatState{Limits: e.fetchLimits(ctx)}
	ptx := tx.PendingTx{
		Amount:              money.Zero(fiat),
		TotalBalance:        money.Zero(fiat),
		AvailableBalance:    money.Zero(fiat),
		FeeAmount:           money.Zero(fiat),
		FeeForFullAvailable: money.Zero(fiat),
		FeeSelection:        tx.NoFees(),
		SelectedFiat:        fiat,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         state,
	}
	if state.Limits != nil {
		ptx.MinLimit = state.Limits.Min.Ptr()
		if state.Limits.HasMax() {
			ptx.MaxLimit = state.Limits.Max.Ptr()
		}
	}
	return ptx, nil
}

// UpdateAmount only stamps the amount. Money is arriving, so there is no
// balance to check.
func (e *FiatDepositEngine) UpdateAmount(_ context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	if amount.Currency() != e.source.Currency() {
		return ptx, fmt.Errorf("%w: deposit in %s, amount in %s", tx.ErrCurrencyMismatch, e.source.Currency().Code, amount.Currency().Code)
	}
	out := ptx.Clone()
	out.Amount = amount
	return out, nil
}

func (e *FiatDepositEngine) ValidateAmount(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	if ptx.ValidationState == tx.ValidationUninitialised && ptx.Amount.IsZero() {
		return ptx, nil
	}

	ptx, limits := e.limits(ctx, ptx)
	amount := ptx.Amount
	switch {
	case limits == nil:
		return ptx.WithValidity(tx.ValidationUnknownError), nil
	case !amount.IsPositive():
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	case amount.LessThan(limits.Min):
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	case limits.HasMax() && amount.GreaterThan(limits.Max):
		return ptx.WithValidity(tx.ValidationOverMaxLimit), nil
	}
	return ptx.WithValidity(tx.ValidationCanExecute), nil
}

func (e *FiatDepositEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return e.ValidateAmount(ctx, ptx)
}

func (e *FiatDepositEngine) BuildConfirmations(_ context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	completion := "1-3 business days"
	if openBankingCurrencies[e.source.Currency().Code] {
		completion = "once approved with your bank"
	}
	return e.confirmations(ptx, completion), nil
}

// Execute starts the bank transfer and returns the payment id
func (e *FiatDepositEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	bankID, err := e.source.ReceiveAddress(ctx)
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("bank id: %w", err))
	}
	paymentID, err := e.backend.StartBankTransfer(ctx, bankID, ptx.Amount)
	if err != nil {
		return tx.TxResult{}, e.execFailed(err)
	}
	return tx.Hashed(paymentID, ptx.Amount), nil
}

// PostExecute waits for the bank's authorisation link on open banking
// deposits and reports it as an *tx.ApprovalRequiredError
func (e *FiatDepositEngine) PostExecute(ctx context.Context, ptx tx.PendingTx, result tx.TxResult) error {
	if !openBankingCurrencies[ptx.Amount.Currency().Code] {
		return nil
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= e.pollAttempts; attempt++ {
		charge, err := e.backend.GetBankTransferCharge(ctx, result.TxID)
		if err != nil {
			e.log.Debug("bank transfer charge not ready", zap.Int("attempt", attempt), zap.Error(err))
		} else if charge.Authorised() {
			return &tx.ApprovalRequiredError{
				PaymentID:        result.TxID,
				AuthorisationURL: charge.AuthorisationURL,
				Amount:           ptx.Amount,
			}
		}

		if attempt == e.pollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("payment %s: no authorisation link after %d attempts", result.TxID, e.pollAttempts)
}

// FiatWithdrawalEngine sends fiat from a fiat account to a linked bank
type FiatWithdrawalEngine struct {
	fiatBase
	bank account.AccountTarget
}

// NewFiatWithdrawalEngine withdraws from source to bank
func NewFiatWithdrawalEngine(source account.Source, bank account.AccountTarget, backend BankBackend,
	rates tx.RateProvider, userFiat money.Currency) *FiatWithdrawalEngine {
	return &FiatWithdrawalEngine{
		fiatBase: fiatBase{
			base:        newBase("fiat-withdrawal", source, rates, userFiat),
			backend:     backend,
			targetLabel: bank.Label(),
		},
		bank: bank,
	}
}

func (e *FiatWithdrawalEngine) TargetCurrency() money.Currency { return e.source.Currency() }

func (e *FiatWithdrawalEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return tx.PendingTx{}, fmt.Errorf("balances: %w", err)
	}
	fiat := e.source.Currency()
	state := FiatState{Limits: e.fetchLimits(ctx)}
	ptx := tx.PendingTx{
		Amount:              money.Zero(fiat),
		TotalBalance:        total,
		AvailableBalance:    actionable,
		FeeAmount:           money.Zero(fiat),
		FeeForFullAvailable: money.Zero(fiat),
		FeeSelection:        tx.NoFees(),
		MaxLimit:            actionable.Ptr(),
		SelectedFiat:        fiat,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         state,
	}
	if state.Limits != nil {
		ptx.MinLimit = state.Limits.Min.Ptr()
	}
	return ptx, nil
}

// UpdateAmount refreshes the balances. The upper limit is the actionable
// balance.
func (e *FiatWithdrawalEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	if amount.Currency() != e.source.Currency() {
		return ptx, fmt.Errorf("%w: withdrawal in %s, amount in %s", tx.ErrCurrencyMismatch, e.source.Currency().Code, amount.Currency().Code)
	}
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}
	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = actionable
	out.MaxLimit = actionable.Ptr()
	return out, nil
}

// ValidateAmount checks min, then max, then balance
func (e *FiatWithdrawalEngine) ValidateAmount(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	if ptx.ValidationState == tx.ValidationUninitialised && ptx.Amount.IsZero() {
		return ptx, nil
	}

	ptx, limits := e.limits(ctx, ptx)
	amount := ptx.Amount
	switch {
	case limits == nil:
		return ptx.WithValidity(tx.ValidationUnknownError), nil
	case !amount.IsPositive():
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	case amount.LessThan(limits.Min):
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	case ptx.MaxLimit != nil && amount.GreaterThan(*ptx.MaxLimit):
		return ptx.WithValidity(tx.ValidationOverMaxLimit), nil
	case amount.GreaterThan(ptx.AvailableBalance):
		return ptx.WithValidity(tx.ValidationInsufficientFunds), nil
	}
	return ptx.WithValidity(tx.ValidationCanExecute), nil
}

func (e *FiatWithdrawalEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return e.ValidateAmount(ctx, ptx)
}

func (e *FiatWithdrawalEngine) BuildConfirmations(_ context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	return e.confirmations(ptx, "1-3 business days"), nil
}

// Execute resolves the bank id and places the withdrawal
func (e *FiatWithdrawalEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	bankID, err := e.bank.ReceiveAddress(ctx)
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("bank id: %w", err))
	}
	ref, err := e.backend.CreateWithdrawOrder(ctx, ptx.Amount, bankID)
	if err != nil {
		return tx.TxResult{}, e.execFailed(err)
	}
	return tx.Unhashed(ref, ptx.Amount), nil
}
