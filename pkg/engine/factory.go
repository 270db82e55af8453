package engine

import (
	"context"
	"fmt"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

var (
	_ tx.Engine       = (*OnChainEngine)(nil)
	_ tx.Engine       = (*InterestDepositEngine)(nil)
	_ tx.Engine       = (*TradingEngine)(nil)
	_ tx.Engine       = (*TransferEngine)(nil)
	_ tx.Engine       = (*SellEngine)(nil)
	_ tx.Engine       = (*SwapEngine)(nil)
	_ tx.Engine       = (*InterestTradingEngine)(nil)
	_ tx.Engine       = (*FiatDepositEngine)(nil)
	_ tx.Engine       = (*FiatWithdrawalEngine)(nil)
	_ tx.PostExecutor = (*FiatDepositEngine)(nil)
)

// Action is what the caller wants to do with the funds
type Action int

const (
	ActionAny Action = iota
	ActionSend
	ActionWithdraw
	ActionSell
	ActionDeposit
	ActionSwap
)

func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionWithdraw:
		return "withdraw"
	case ActionSell:
		return "sell"
	case ActionDeposit:
		return "deposit"
	case ActionSwap:
		return "swap"
	default:
		return "any"
	}
}

// Factory picks and builds the engine for a (source, target, action)
// triple
type Factory struct {
	Signers       SignerResolver
	Backend       Backend
	Quotes        QuoteSource
	Rates         tx.RateProvider
	Addresses     AddressValidator
	Passwords     tx.SecondPasswordPolicy
	UserFiat      money.Currency
	NoteSupported bool
}

type builder func(ctx context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error)

type route struct {
	source  account.SourceKind
	targets []account.TargetKind
	action  Action
	build   builder
}

func (r route) matches(source account.SourceKind, target account.TargetKind, action Action) bool {
	if r.source != source {
		return false
	}
	if r.action != ActionAny && r.action != action {
		return false
	}
	for _, t := range r.targets {
		if t == target {
			return true
		}
	}
	return false
}

// routes is evaluated in order; the first match wins
var routes = []route{
	{account.SourceSelfCustody, []account.TargetKind{account.TargetAddress}, ActionAny, buildOnChain},
	{account.SourceSelfCustody, []account.TargetKind{account.TargetInterestAccount}, ActionAny, buildInterestDeposit},
	{account.SourceSelfCustody, []account.TargetKind{account.TargetCryptoAccount}, ActionAny, buildOnChain},
	{account.SourceTrading, []account.TargetKind{account.TargetCryptoAccount}, ActionSwap, buildSwap},
	{account.SourceTrading, []account.TargetKind{account.TargetInterestAccount}, ActionAny, buildInterestTrading},
	{account.SourceTrading, []account.TargetKind{account.TargetAddress, account.TargetCryptoAccount}, ActionWithdraw, buildTransfer(custodial.ProductTrading)},
	{account.SourceTrading, []account.TargetKind{account.TargetAddress, account.TargetCryptoAccount}, ActionAny, buildTrading},
	{account.SourceInterest, []account.TargetKind{account.TargetAddress, account.TargetCryptoAccount}, ActionAny, buildTransfer(custodial.ProductInterest)},
	{account.SourceTrading, []account.TargetKind{account.TargetFiatAccount}, ActionAny, buildSell},
	{account.SourceBank, []account.TargetKind{account.TargetFiatAccount}, ActionAny, buildFiatDeposit},
	{account.SourceFiat, []account.TargetKind{account.TargetBank}, ActionAny, buildFiatWithdrawal},
}

// CreateEngine returns the engine for the route. Account targets have
// their receive address resolved first.
func (f *Factory) CreateEngine(ctx context.Context, source account.Source, target account.Target, action Action) (tx.Engine, error) {
	for _, r := range routes {
		if r.matches(source.Kind(), target.TargetKind(), action) {
			return r.build(ctx, f, source, target)
		}
	}
	return nil, &tx.UnsupportedRouteError{
		Source: source.Kind().String(),
		Target: target.TargetKind().String(),
		Action: action.String(),
	}
}

// NewProcessor builds the engine for the route and wraps it
func (f *Factory) NewProcessor(ctx context.Context, source account.Source, target account.Target, action Action) (*tx.Processor, error) {
	e, err := f.CreateEngine(ctx, source, target, action)
	if err != nil {
		return nil, err
	}
	return tx.NewProcessor(e, f.Rates, f.UserFiat, f.Passwords), nil
}

func sameAsset(source account.Source, target account.Target) error {
	if source.Currency() != target.Currency() {
		return fmt.Errorf("%w: %s cannot be sent to a %s target", tx.ErrCurrencyMismatch, source.Currency().Code, target.Currency().Code)
	}
	return nil
}

// resolveAddress returns the raw address of target and its memo, if any
func (f *Factory) resolveAddress(ctx context.Context, target account.Target) (string, string, error) {
	switch t := target.(type) {
	case account.CryptoAddress:
		if f.Addresses != nil {
			if err := f.Addresses.ValidateAddress(t.Asset, t.Address); err != nil {
				return "", "", err
			}
		}
		return t.Address, t.Memo, nil
	case account.AccountTarget:
		addr, err := t.ReceiveAddress(ctx)
		if err != nil {
			return "", "", fmt.Errorf("resolve address of %s: %w", t.Label(), err)
		}
		if addr == "" {
			return "", "", fmt.Errorf("%s has no receive address", t.Label())
		}
		return addr, "", nil
	default:
		return "", "", fmt.Errorf("target %s has no address", target.Label())
	}
}

func (f *Factory) signer(asset money.Currency) (OnChainSigner, error) {
	if f.Signers == nil {
		return nil, fmt.Errorf("no signer configured for %s", asset.Code)
	}
	return f.Signers.SignerFor(asset)
}

func buildOnChain(ctx context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if err := sameAsset(source, target); err != nil {
		return nil, err
	}
	signer, err := f.signer(source.Currency())
	if err != nil {
		return nil, err
	}
	address, memo, err := f.resolveAddress(ctx, target)
	if err != nil {
		return nil, err
	}
	return NewOnChainEngine(source, target, address, signer, f.Rates, f.UserFiat, WithMemo(memo)), nil
}

func buildInterestDeposit(ctx context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if err := sameAsset(source, target); err != nil {
		return nil, err
	}
	signer, err := f.signer(source.Currency())
	if err != nil {
		return nil, err
	}
	address, _, err := f.resolveAddress(ctx, target)
	if err != nil {
		return nil, err
	}
	return NewInterestDepositEngine(source, target, address, signer, f.Backend, f.Rates, f.UserFiat), nil
}

func buildTrading(ctx context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if err := sameAsset(source, target); err != nil {
		return nil, err
	}
	address, memo, err := f.resolveAddress(ctx, target)
	if err != nil {
		return nil, err
	}
	return NewTradingEngine(source, target, address, memo, f.Backend, f.Rates, f.UserFiat, f.NoteSupported), nil
}

func buildTransfer(product custodial.Product) builder {
	return func(ctx context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
		if err := sameAsset(source, target); err != nil {
			return nil, err
		}
		address, _, err := f.resolveAddress(ctx, target)
		if err != nil {
			return nil, err
		}
		return NewTransferEngine(source, target, address, product, f.Backend, f.Rates, f.UserFiat), nil
	}
}

// quoteSource is Quotes, or the backend when it can price trades itself
func (f *Factory) quoteSource(asset money.Currency) (QuoteSource, error) {
	if f.Quotes != nil {
		return f.Quotes, nil
	}
	qs, ok := f.Backend.(QuoteSource)
	if !ok {
		return nil, fmt.Errorf("no quote source configured for %s", asset.Code)
	}
	return qs, nil
}

func buildSell(_ context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if !source.Currency().IsCrypto() || !target.Currency().IsFiat() {
		return nil, fmt.Errorf("%w: sell needs crypto into fiat, got %s into %s", tx.ErrCurrencyMismatch,
			source.Currency().Code, target.Currency().Code)
	}
	quotes, err := f.quoteSource(source.Currency())
	if err != nil {
		return nil, err
	}
	return NewSellEngine(source, target, f.Backend, quotes, f.Rates, f.UserFiat), nil
}

// tradingAccount reports whether target is a custodial trading account
func tradingAccount(target account.Target) bool {
	switch t := target.(type) {
	case account.AccountRef:
		return t.Account.Kind() == account.SourceTrading
	case account.Source:
		return t.Kind() == account.SourceTrading
	}
	return false
}

func buildSwap(_ context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if !tradingAccount(target) {
		return nil, &tx.UnsupportedRouteError{Source: source.Kind().String(), Target: target.TargetKind().String(), Action: ActionSwap.String()}
	}
	from, to := source.Currency(), target.Currency()
	if !from.IsCrypto() || !to.IsCrypto() || from == to {
		return nil, fmt.Errorf("%w: swap needs two different crypto assets, got %s and %s", tx.ErrCurrencyMismatch, from.Code, to.Code)
	}
	quotes, err := f.quoteSource(from)
	if err != nil {
		return nil, err
	}
	return NewSwapEngine(source, target, f.Backend, quotes, f.Rates, f.UserFiat), nil
}

func buildInterestTrading(_ context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if err := sameAsset(source, target); err != nil {
		return nil, err
	}
	return NewInterestTradingEngine(source, target, f.Backend, f.Rates, f.UserFiat), nil
}

func buildFiatDeposit(_ context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if err := sameAsset(source, target); err != nil {
		return nil, err
	}
	return NewFiatDepositEngine(source, target, f.Backend, f.Rates, f.UserFiat), nil
}

func buildFiatWithdrawal(_ context.Context, f *Factory, source account.Source, target account.Target) (tx.Engine, error) {
	if err := sameAsset(source, target); err != nil {
		return nil, err
	}
	bank, ok := target.(account.AccountTarget)
	if !ok {
		return nil, fmt.Errorf("bank target %s has no id", target.Label())
	}
	return NewFiatWithdrawalEngine(source, bank, f.Backend, f.Rates, f.UserFiat), nil
}
