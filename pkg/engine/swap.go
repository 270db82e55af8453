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

// SwapState is the private state of the swap engine
type SwapState struct {
	Quote *custodial.Quote
	// FiatLimits are the backend limits in the user's fiat
	FiatLimits *custodial.Limits
}

func (SwapState) EngineName() string { return "swap" }

// SwapEngine trades one trading account asset for another. The backend
// charges the network fee of the target asset out of the proceeds, so it
// raises the minimum instead of showing up as a fee.
type SwapEngine struct {
	base
	backend     SwapBackend
	quotes      QuoteSource
	target      money.Currency
	targetLabel string
	now         func() time.Time
}

// NewSwapEngine swaps source's asset into target's
func NewSwapEngine(source account.Source, target account.Target, backend SwapBackend, quotes QuoteSource,
	rates tx.RateProvider, userFiat money.Currency) *SwapEngine {
	return &SwapEngine{
		base:        newBase("swap", source, rates, userFiat),
		backend:     backend,
		quotes:      quotes,
		target:      target.Currency(),
		targetLabel: target.Label(),
		now:         time.Now,
	}
}

func (e *SwapEngine) TargetCurrency() money.Currency { return e.target }

func (e *SwapEngine) fetchLimits(ctx context.Context) *custodial.Limits {
	limits, err := e.backend.GetSwapLimits(ctx, e.source.Currency(), e.target, e.userFiat)
	if err != nil {
		e.log.Warn("swap limits unavailable", zap.Error(err))
		return nil
	}
	if err := limits.In(e.userFiat); err != nil {
		e.log.Warn("swap limits ignored", zap.Error(err))
		return nil
	}
	return &limits
}

func (e *SwapEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return tx.PendingTx{}, fmt.Errorf("balances: %w", err)
	}
	return tx.PendingTx{
		Amount:              money.Zero(e.source.Currency()),
		TotalBalance:        total,
		AvailableBalance:    actionable,
		FeeAmount:           money.Zero(e.source.Currency()),
		FeeForFullAvailable: money.Zero(e.source.Currency()),
		FeeSelection:        tx.NoFees(),
		SelectedFiat:        e.userFiat,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         SwapState{FiatLimits: e.fetchLimits(ctx)},
	}, nil
}

func (e *SwapEngine) quote(ctx context.Context, amount money.Money) (custodial.Quote, money.ExchangeRate, error) {
	q, err := e.quotes.GetQuote(ctx, e.source.Currency(), e.target, custodial.ActionSwap, amount)
	if err != nil {
		return custodial.Quote{}, money.ExchangeRate{}, fmt.Errorf("quote: %w", err)
	}
	rate, err := q.ExchangeRate()
	if err != nil {
		return custodial.Quote{}, money.ExchangeRate{}, fmt.Errorf("quote %s: %w", q.ID, err)
	}
	return q, rate, nil
}

// sourceLimits turns the fiat limits into the source asset at the market
// rate and adds the quoted network fee to the minimum. Without a market
// rate the limits are unknown.
func (e *SwapEngine) sourceLimits(ctx context.Context, state SwapState) (*money.Money, *money.Money) {
	if state.FiatLimits == nil || state.Quote == nil || e.rates == nil {
		return nil, nil
	}
	market, err := e.rates.Rate(ctx, e.source.Currency(), e.userFiat)
	if err != nil {
		e.log.Warn("no market rate for swap limits", zap.Error(err))
		return nil, nil
	}
	lo, hi, err := limitsIn(money.Zero(e.source.Currency()), state.FiatLimits, market)
	if err != nil {
		e.log.Warn("swap limits not convertible", zap.Error(err))
		return nil, nil
	}

	fee := state.Quote.Fee
	if fee.Currency() != e.target || !fee.IsPositive() {
		return lo, hi
	}
	rate, err := state.Quote.ExchangeRate()
	if err != nil {
		return nil, nil
	}
	feeInSource, err := rate.ConvertBack(fee)
	if err != nil {
		return nil, nil
	}
	withFee := lo.Add(feeInSource)
	return &withFee, hi
}

// UpdateAmount refreshes balances and the quote. Swaps are entered in the
// source asset only.
func (e *SwapEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	if amount.Currency() != e.source.Currency() {
		return ptx, fmt.Errorf("%w: swap amount in %s, want %s", tx.ErrCurrencyMismatch, amount.Currency().Code, e.source.Currency().Code)
	}

	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}
	q, _, err := e.quote(ctx, amount)
	if err != nil {
		return ptx, err
	}

	state, _ := tx.StateAs[SwapState](ptx)
	if state.FiatLimits == nil {
		state.FiatLimits = e.fetchLimits(ctx)
	}
	state.Quote = &q

	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = actionable
	out.MinLimit, out.MaxLimit = e.sourceLimits(ctx, state)
	out.EngineState = state
	return out, nil
}

func (e *SwapEngine) UpdateFeeLevel(_ context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	if _, err := ptx.FeeSelection.Transition(level, custom); err != nil {
		return ptx, err
	}
	return ptx, nil
}

// ValidateAmount checks balance first, then min and max. A swap without
// known limits cannot go ahead.
func (e *SwapEngine) ValidateAmount(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	amount := ptx.Amount
	if !amount.IsPositive() {
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	}
	if amount.GreaterThan(ptx.AvailableBalance) {
		return ptx.WithValidity(tx.ValidationInsufficientFunds), nil
	}

	state, _ := tx.StateAs[SwapState](ptx)
	if state.FiatLimits == nil {
		if state.FiatLimits = e.fetchLimits(ctx); state.FiatLimits == nil {
			return ptx.WithValidity(tx.ValidationUnknownError), nil
		}
		ptx = ptx.WithState(state)
	}
	lo, hi := e.sourceLimits(ctx, state)
	if lo == nil {
		return ptx.WithValidity(tx.ValidationUnknownError), nil
	}

	switch {
	case amount.LessThan(*lo):
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	case hi != nil && amount.GreaterThan(*hi):
		return ptx.WithValidity(tx.ValidationOverMaxLimit), nil
	default:
		return ptx.WithValidity(tx.ValidationCanExecute), nil
	}
}

// ValidateAll also rejects an expired quote
func (e *SwapEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	out, err := e.ValidateAmount(ctx, ptx)
	if err != nil || out.ValidationState != tx.ValidationCanExecute {
		return out, err
	}
	state, _ := tx.StateAs[SwapState](out)
	if state.Quote != nil && state.Quote.Expired(e.now()) {
		return out.WithValidity(tx.ValidationInvoiceExpired), nil
	}
	return out, nil
}

// BuildConfirmations refreshes the quote and shows the price, what the
// target receives and the network fee taken from it
func (e *SwapEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	q, rate, err := e.quote(ctx, ptx.Amount)
	if err != nil {
		return ptx, err
	}
	receive, err := rate.Convert(ptx.Amount)
	if err != nil {
		return ptx, err
	}

	state, _ := tx.StateAs[SwapState](ptx)
	state.Quote = &q

	out := ptx.Clone()
	out.MinLimit, out.MaxLimit = e.sourceLimits(ctx, state)
	out.EngineState = state

	opts := []tx.Option{
		tx.ExchangePriceOption{Price: rate.Price()},
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.TotalOption{Amount: ptx.Amount, Fiat: e.fiatValue(ctx, ptx.Amount)},
		tx.ReceiveAmountOption{Amount: receive, Fiat: e.fiatValue(ctx, receive)},
		tx.NetworkFeeOption{Fee: q.Fee, FiatFee: e.fiatValue(ctx, q.Fee)},
	}
	if !q.ExpiresAt.IsZero() {
		opts = append(opts, tx.InvoiceCountdownOption{ExpiresAt: q.ExpiresAt})
	}
	return rebuild(out, opts...), nil
}

// Execute places the swap order against the confirmed quote. The backend
// settles it inside the trading account, so there is no hash.
func (e *SwapEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	state, _ := tx.StateAs[SwapState](ptx)
	if state.Quote == nil {
		return tx.TxResult{}, fmt.Errorf("%w: no quote", tx.ErrNotInitialised)
	}

	order, err := e.backend.CreateOrder(ctx, custodial.OrderRequest{
		Asset:   e.source.Currency(),
		Counter: e.target,
		Action:  custodial.ActionSwap,
		Amount:  ptx.Amount,
		QuoteID: state.Quote.ID,
	})
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("create swap order: %w", err))
	}
	e.log.Info("swap order created", zap.String("order", order.ID), zap.String("state", string(order.State)))
	return tx.Unhashed(order.ID, ptx.Amount), nil
}
