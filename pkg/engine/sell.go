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

// SellState is the private state of the sell engine
type SellState struct {
	Quote *custodial.Quote
	// FiatLimits are the backend limits, always in fiat
	FiatLimits *custodial.Limits
}

func (SellState) EngineName() string { return "sell" }

// SellEngine sells custodial crypto into a fiat account. The user may
// enter the amount in either currency; validation always compares the
// crypto equivalent.
type SellEngine struct {
	base
	backend     SellBackend
	quotes      QuoteSource
	fiat        money.Currency
	targetLabel string
	now         func() time.Time
}

// NewSellEngine sells source's asset into target's fiat
func NewSellEngine(source account.Source, target account.Target, backend SellBackend, quotes QuoteSource,
	rates tx.RateProvider, userFiat money.Currency) *SellEngine {
	return &SellEngine{
		base:        newBase("sell", source, rates, userFiat),
		backend:     backend,
		quotes:      quotes,
		fiat:        target.Currency(),
		targetLabel: target.Label(),
		now:         time.Now,
	}
}

func (e *SellEngine) TargetCurrency() money.Currency { return e.fiat }
func (e *SellEngine) CanTransactFiat() bool          { return true }

func (e *SellEngine) fetchLimits(ctx context.Context) *custodial.Limits {
	limits, err := e.backend.GetSellLimits(ctx, e.source.Currency(), e.fiat)
	if err != nil {
		e.log.Warn("sell limits unavailable", zap.Error(err))
		return nil
	}
	if err := limits.In(e.fiat); err != nil {
		e.log.Warn("sell limits ignored", zap.Error(err))
		return nil
	}
	return &limits
}

func (e *SellEngine) Initialize(ctx context.Context) (tx.PendingTx, error) {
	total, actionable, err := e.balances(ctx)
	if err != nil {
		return tx.PendingTx{}, fmt.Errorf("balances: %w", err)
	}

	state := SellState{FiatLimits: e.fetchLimits(ctx)}
	ptx := tx.PendingTx{
		Amount:              money.Zero(e.source.Currency()),
		TotalBalance:        total,
		AvailableBalance:    actionable,
		FeeAmount:           money.Zero(e.fiat),
		FeeForFullAvailable: money.Zero(e.fiat),
		FeeSelection:        tx.NoFees(),
		SelectedFiat:        e.fiat,
		ValidationState:     tx.ValidationUninitialised,
		EngineState:         state,
	}
	if state.FiatLimits != nil {
		ptx.MinLimit = state.FiatLimits.Min.Ptr()
		if state.FiatLimits.HasMax() {
			ptx.MaxLimit = state.FiatLimits.Max.Ptr()
		}
	}
	return ptx, nil
}

func (e *SellEngine) quote(ctx context.Context, amount money.Money) (custodial.Quote, money.ExchangeRate, error) {
	q, err := e.quotes.GetQuote(ctx, e.source.Currency(), e.fiat, custodial.ActionSell, amount)
	if err != nil {
		return custodial.Quote{}, money.ExchangeRate{}, fmt.Errorf("quote: %w", err)
	}
	rate, err := q.ExchangeRate()
	if err != nil {
		return custodial.Quote{}, money.ExchangeRate{}, fmt.Errorf("quote %s: %w", q.ID, err)
	}
	return q, rate, nil
}

// limitsIn converts the fiat limits into the currency of amount
func limitsIn(amount money.Money, fiatLimits *custodial.Limits, rate money.ExchangeRate) (*money.Money, *money.Money, error) {
	if fiatLimits == nil {
		return nil, nil, nil
	}
	lo, err := rate.ConvertAny(fiatLimits.Min, amount.Currency())
	if err != nil {
		return nil, nil, err
	}
	if !fiatLimits.HasMax() {
		return &lo, nil, nil
	}
	hi, err := rate.ConvertAny(fiatLimits.Max, amount.Currency())
	if err != nil {
		return nil, nil, err
	}
	return &lo, &hi, nil
}

// UpdateAmount refreshes balances and the quote, and re-derives the limits
// in the currency the user is entering
func (e *SellEngine) UpdateAmount(ctx context.Context, amount money.Money, ptx tx.PendingTx) (tx.PendingTx, error) {
	if amount.IsFiat() && amount.Currency() != e.fiat {
		return ptx, fmt.Errorf("%w: sell pays out %s, amount in %s", tx.ErrCurrencyMismatch, e.fiat.Code, amount.Currency().Code)
	}

	total, actionable, err := e.balances(ctx)
	if err != nil {
		return ptx, fmt.Errorf("balances: %w", err)
	}
	q, rate, err := e.quote(ctx, amount)
	if err != nil {
		return ptx, err
	}

	state, _ := tx.StateAs[SellState](ptx)
	if state.FiatLimits == nil {
		state.FiatLimits = e.fetchLimits(ctx)
	}
	state.Quote = &q

	minLimit, maxLimit, err := limitsIn(amount, state.FiatLimits, rate)
	if err != nil {
		return ptx, err
	}

	out := ptx.Clone()
	out.Amount = amount
	out.TotalBalance = total
	out.AvailableBalance = actionable
	out.FeeAmount = q.Fee
	out.MinLimit = minLimit
	out.MaxLimit = maxLimit
	out.EngineState = state
	return out, nil
}

func (e *SellEngine) UpdateFeeLevel(_ context.Context, ptx tx.PendingTx, level tx.FeeLevel, custom int64) (tx.PendingTx, error) {
	if _, err := ptx.FeeSelection.Transition(level, custom); err != nil {
		return ptx, err
	}
	return ptx, nil
}

// cryptoAmount returns the amount of ptx in the sold asset
func (e *SellEngine) cryptoAmount(ptx tx.PendingTx) (money.Money, money.ExchangeRate, error) {
	state, _ := tx.StateAs[SellState](ptx)
	if state.Quote == nil {
		return money.Money{}, money.ExchangeRate{}, fmt.Errorf("%w: no quote", tx.ErrNotInitialised)
	}
	rate, err := state.Quote.ExchangeRate()
	if err != nil {
		return money.Money{}, money.ExchangeRate{}, err
	}
	crypto, err := rate.ConvertAny(ptx.Amount, e.source.Currency())
	if err != nil {
		return money.Money{}, money.ExchangeRate{}, err
	}
	return crypto, rate, nil
}

// ValidateAmount checks min, then balance, then max, all in crypto
func (e *SellEngine) ValidateAmount(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	if ptx.Amount.IsZero() {
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	}

	state, _ := tx.StateAs[SellState](ptx)
	if state.FiatLimits == nil {
		if state.FiatLimits = e.fetchLimits(ctx); state.FiatLimits == nil {
			return ptx.WithValidity(tx.ValidationUnknownError), nil
		}
		ptx = ptx.WithState(state)
	}

	crypto, rate, err := e.cryptoAmount(ptx)
	if err != nil {
		return ptx, err
	}
	minC, maxC, err := limitsIn(crypto, state.FiatLimits, rate)
	if err != nil {
		return ptx, err
	}

	balance := ptx.AvailableBalance
	maxAvailable := balance
	if maxC != nil {
		maxAvailable = money.Min(balance, *maxC)
	}

	switch {
	case !crypto.IsPositive():
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	case crypto.GreaterOrEqual(*minC) && crypto.LessOrEqual(maxAvailable):
		return ptx.WithValidity(tx.ValidationCanExecute), nil
	case crypto.LessThan(*minC):
		return ptx.WithValidity(tx.ValidationUnderMinLimit), nil
	case crypto.GreaterThan(balance):
		return ptx.WithValidity(tx.ValidationInsufficientFunds), nil
	case maxC != nil && crypto.GreaterThan(*maxC):
		return ptx.WithValidity(tx.ValidationOverMaxLimit), nil
	default:
		return ptx.WithValidity(tx.ValidationInvalidAmount), nil
	}
}

// ValidateAll also rejects an expired quote
func (e *SellEngine) ValidateAll(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	out, err := e.ValidateAmount(ctx, ptx)
	if err != nil || out.ValidationState != tx.ValidationCanExecute {
		return out, err
	}
	state, _ := tx.StateAs[SellState](out)
	if state.Quote != nil && state.Quote.Expired(e.now()) {
		return out.WithValidity(tx.ValidationInvoiceExpired), nil
	}
	return out, nil
}

// BuildConfirmations refreshes the quote and re-denominates a fiat amount
// into the sold asset
func (e *SellEngine) BuildConfirmations(ctx context.Context, ptx tx.PendingTx) (tx.PendingTx, error) {
	crypto := ptx.Amount
	if ptx.Amount.IsFiat() {
		c, _, err := e.cryptoAmount(ptx)
		if err != nil {
			return ptx, err
		}
		crypto = c
	}

	q, rate, err := e.quote(ctx, crypto)
	if err != nil {
		return ptx, err
	}
	if ptx.Amount.IsFiat() {
		// re-denominate with the fresh quote
		if crypto, err = rate.ConvertBack(ptx.Amount); err != nil {
			return ptx, err
		}
	}

	state, _ := tx.StateAs[SellState](ptx)
	state.Quote = &q
	minLimit, maxLimit, err := limitsIn(crypto, state.FiatLimits, rate)
	if err != nil {
		return ptx, err
	}
	fiatTotal, err := rate.Convert(crypto)
	if err != nil {
		return ptx, err
	}

	out := ptx.Clone()
	out.Amount = crypto
	out.FeeAmount = q.Fee
	out.MinLimit = minLimit
	out.MaxLimit = maxLimit
	out.EngineState = state

	opts := []tx.Option{
		tx.ExchangePriceOption{Price: rate.Price()},
		tx.FromOption{Label: e.source.Label()},
		tx.ToOption{Label: e.targetLabel},
		tx.FiatFeeOption{Fee: q.Fee},
		tx.TotalOption{Amount: crypto, Fiat: &fiatTotal},
	}
	if !q.ExpiresAt.IsZero() {
		opts = append(opts, tx.InvoiceCountdownOption{ExpiresAt: q.ExpiresAt})
	}
	return rebuild(out, opts...), nil
}

// Execute cancels pending orders, creates the sell order and confirms it.
// A confirmation failure leaves the created order on the backend.
func (e *SellEngine) Execute(ctx context.Context, ptx tx.PendingTx, _ string) (tx.TxResult, error) {
	crypto, _, err := e.cryptoAmount(ptx)
	if err != nil {
		return tx.TxResult{}, err
	}
	state, _ := tx.StateAs[SellState](ptx)

	if err := e.backend.CancelAllPendingOrders(ctx, e.source.Currency()); err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("cancel pending orders: %w", err))
	}

	order, err := e.backend.CreateOrder(ctx, custodial.OrderRequest{
		Asset:   e.source.Currency(),
		Counter: e.fiat,
		Action:  custodial.ActionSell,
		Amount:  crypto,
		QuoteID: state.Quote.ID,
	})
	if err != nil {
		return tx.TxResult{}, e.execFailed(fmt.Errorf("create order: %w", err))
	}

	confirmed, err := e.backend.ConfirmOrder(ctx, order.ID)
	if err != nil {
		e.log.Warn("sell order created but not confirmed", zap.String("order", order.ID), zap.Error(err))
		return tx.TxResult{}, e.execFailed(fmt.Errorf("confirm order %s: %w", order.ID, err))
	}
	return tx.Unhashed(confirmed.ID, crypto), nil
}
