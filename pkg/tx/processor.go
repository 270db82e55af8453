package tx

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletcore/pkg/logger"
	"walletcore/pkg/money"
)

// Processor drives one Engine through a single transaction attempt. It is
// the only entry point callers use.
//
// Execute must be called at most once per Processor. Nothing here
// remembers that it ran.
type Processor struct {
	engine    Engine
	rates     RateProvider
	userFiat  money.Currency
	passwords SecondPasswordPolicy
	log       *zap.Logger
}

// NewProcessor binds engine to the rate context of the user
func NewProcessor(engine Engine, rates RateProvider, userFiat money.Currency, passwords SecondPasswordPolicy) *Processor {
	if passwords == nil {
		passwords = StaticPasswordPolicy(false)
	}
	return &Processor{
		engine:    engine,
		rates:     rates,
		userFiat:  userFiat,
		passwords: passwords,
		log:       logger.Named("processor").With(zap.String("engine", engine.Name())),
	}
}

// Engine returns the bound engine
func (p *Processor) Engine() Engine {
	return p.engine
}

// Initialize builds the first pending transaction
func (p *Processor) Initialize(ctx context.Context) (PendingTx, error) {
	ptx, err := p.engine.Initialize(ctx)
	if err != nil {
		return PendingTx{}, fmt.Errorf("initialize: %w", err)
	}
	p.trace("initialize", ptx)
	return ptx, nil
}

// UpdateAmount applies a new amount and validates it. A zero amount on a
// fresh transaction leaves it UNINITIALISED.
func (p *Processor) UpdateAmount(ctx context.Context, ptx PendingTx, amount money.Money) (PendingTx, error) {
	if err := p.checkAmountCurrency(amount); err != nil {
		return ptx, err
	}

	fresh := ptx.ValidationState == ValidationUninitialised
	next, err := p.engine.UpdateAmount(ctx, amount, ptx)
	if err != nil {
		return ptx, err
	}
	if fresh && amount.IsZero() {
		next = next.WithValidity(ValidationUninitialised)
		p.trace("update amount", next)
		return next, nil
	}

	next, err = p.engine.ValidateAmount(ctx, next)
	if err != nil {
		return ptx, err
	}
	p.trace("update amount", next)
	return next, nil
}

func (p *Processor) checkAmountCurrency(amount money.Money) error {
	if amount.IsFiat() {
		if !p.engine.CanTransactFiat() {
			return fmt.Errorf("%w: %s", ErrFiatNotSupported, p.engine.Name())
		}
		return nil
	}
	if amount.Currency() != p.engine.SourceCurrency() {
		return fmt.Errorf("%w: amount in %s, source holds %s", ErrCurrencyMismatch,
			amount.Currency().Code, p.engine.SourceCurrency().Code)
	}
	return nil
}

// UpdateFeeLevel changes the fee level and revalidates the amount
func (p *Processor) UpdateFeeLevel(ctx context.Context, ptx PendingTx, level FeeLevel, custom int64) (PendingTx, error) {
	if !ptx.FeeSelection.Supports(level) {
		return ptx, fmt.Errorf("%w: %s not in %v", ErrInvalidFeeLevelTransition, level, ptx.FeeSelection.AvailableLevels)
	}

	next, err := p.engine.UpdateFeeLevel(ctx, ptx, level, custom)
	if err != nil {
		return ptx, err
	}
	next, err = p.engine.ValidateAmount(ctx, next)
	if err != nil {
		return ptx, err
	}
	p.trace("update fee level", next)
	return next, nil
}

// SetOption replaces an existing confirmation option. Options cannot be
// introduced by the caller.
func (p *Processor) SetOption(ctx context.Context, ptx PendingTx, opt Option) (PendingTx, error) {
	if opt == nil || !ptx.HasOption(opt.Kind()) {
		kind := "nil"
		if opt != nil {
			kind = opt.Kind().String()
		}
		return ptx, fmt.Errorf("%w: %s", ErrUnsupportedOption, kind)
	}

	next, err := p.engine.UpdateOption(ctx, ptx, opt)
	if err != nil {
		return ptx, err
	}
	next, err = p.engine.ValidateAll(ctx, next)
	if err != nil {
		return ptx, err
	}
	p.trace("set option", next)
	return next, nil
}

// ValidateAmount revalidates the amount only
func (p *Processor) ValidateAmount(ctx context.Context, ptx PendingTx) (PendingTx, error) {
	next, err := p.engine.ValidateAmount(ctx, ptx)
	if err != nil {
		return ptx, err
	}
	p.trace("validate amount", next)
	return next, nil
}

// ValidateAll rebuilds the confirmations and runs every check
func (p *Processor) ValidateAll(ctx context.Context, ptx PendingTx) (PendingTx, error) {
	next, err := p.engine.BuildConfirmations(ctx, ptx)
	if err != nil {
		return ptx, err
	}
	next, err = p.engine.ValidateAll(ctx, next)
	if err != nil {
		return ptx, err
	}
	p.trace("validate all", next)
	return next, nil
}

// BuildConfirmations refreshes the confirmation options
func (p *Processor) BuildConfirmations(ctx context.Context, ptx PendingTx) (PendingTx, error) {
	next, err := p.engine.BuildConfirmations(ctx, ptx)
	if err != nil {
		return ptx, err
	}
	p.trace("build confirmations", next)
	return next, nil
}

// Execute validates ptx one last time and hands it to the engine. A
// PostExecutor error is returned together with the result.
func (p *Processor) Execute(ctx context.Context, ptx PendingTx, secondPassword string) (TxResult, error) {
	if p.passwords.IsSecondPasswordRequired() && secondPassword == "" {
		return TxResult{}, ErrSecondPasswordRequired
	}

	validated, err := p.engine.ValidateAll(ctx, ptx)
	if err != nil {
		return TxResult{}, err
	}
	if err := StateError(validated.ValidationState); err != nil {
		p.log.Info("execute refused", zap.Stringer("state", validated.ValidationState))
		return TxResult{}, err
	}

	result, err := p.engine.Execute(ctx, validated, secondPassword)
	if err != nil {
		p.log.Error("execute failed", zap.Error(err))
		return TxResult{}, err
	}
	p.log.Info("executed",
		zap.String("id", result.ID()),
		zap.Bool("hashed", result.IsHashed()),
		zap.String("amount", result.Amount.String()),
	)

	if post, ok := p.engine.(PostExecutor); ok {
		if err := post.PostExecute(ctx, validated, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// UserExchangeRate is the rate from the source asset to the user's fiat
func (p *Processor) UserExchangeRate(ctx context.Context) (money.ExchangeRate, error) {
	return p.rate(ctx, p.userFiat)
}

// TargetExchangeRate is the rate from the source asset to what the target
// receives
func (p *Processor) TargetExchangeRate(ctx context.Context) (money.ExchangeRate, error) {
	return p.rate(ctx, p.engine.TargetCurrency())
}

func (p *Processor) rate(ctx context.Context, to money.Currency) (money.ExchangeRate, error) {
	from := p.engine.SourceCurrency()
	if from == to {
		return money.NewRate(from, to, decimal.NewFromInt(1))
	}
	if p.rates == nil {
		return money.ExchangeRate{}, fmt.Errorf("no rate provider for %s-%s", from.Code, to.Code)
	}
	return p.rates.Rate(ctx, from, to)
}

func (p *Processor) trace(op string, ptx PendingTx) {
	p.log.Debug(op,
		zap.Stringer("state", ptx.ValidationState),
		zap.String("amount", ptx.Amount.String()),
		zap.Int("options", len(ptx.Confirmations)),
	)
}
