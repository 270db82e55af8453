package engine

import (
	"context"

	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// SendRequest describes an on-chain transfer to build
type SendRequest struct {
	To        string
	Amount    money.Money
	Level     tx.FeeLevel
	CustomFee int64
	Memo      string
}

// UnsignedTx is a transaction built by a signer and not yet signed
type UnsignedTx interface {
	Fee() money.Money
}

// OnChainSigner builds, signs and broadcasts transfers of one asset. It
// owns every chain specific rule; engines only see fees and balances.
type OnChainSigner interface {
	Asset() money.Currency
	// FeeAsset pays the network fee. It differs from Asset for tokens.
	FeeAsset() money.Currency
	FeeLevels() []tx.FeeLevel
	SupportsMemo() bool

	Balances(ctx context.Context) (total, actionable money.Money, err error)
	FeeBalance(ctx context.Context) (money.Money, error)
	EstimateFee(ctx context.Context, amount money.Money, level tx.FeeLevel, custom int64) (money.Money, error)
	CustomFeeLimits(ctx context.Context) (*tx.FeeLimits, error)
	HasPendingTx(ctx context.Context) (bool, error)

	BuildTransaction(ctx context.Context, req SendRequest) (UnsignedTx, error)
	SignAndBroadcast(ctx context.Context, utx UnsignedTx, secondPassword string) (string, error)
}

// SignerResolver finds the signer for an asset held in self custody
type SignerResolver interface {
	SignerFor(asset money.Currency) (OnChainSigner, error)
}

// AddressValidator checks a raw address before any engine is built
type AddressValidator interface {
	ValidateAddress(asset money.Currency, address string) error
}

// QuoteSource prices a trade of asset against counter, the fiat of a sell
// or the target asset of a swap. amount may be in either currency.
type QuoteSource interface {
	GetQuote(ctx context.Context, asset, counter money.Currency, action custodial.Action, amount money.Money) (custodial.Quote, error)
}

// SellBackend places custodial sell orders
type SellBackend interface {
	GetSellLimits(ctx context.Context, asset, fiat money.Currency) (custodial.Limits, error)
	CancelAllPendingOrders(ctx context.Context, asset money.Currency) error
	CreateOrder(ctx context.Context, req custodial.OrderRequest) (custodial.Order, error)
	ConfirmOrder(ctx context.Context, id string) (custodial.Order, error)
}

// SwapBackend places custodial orders between two assets
type SwapBackend interface {
	GetSwapLimits(ctx context.Context, from, to, fiat money.Currency) (custodial.Limits, error)
	CreateOrder(ctx context.Context, req custodial.OrderRequest) (custodial.Order, error)
}

// WithdrawBackend moves trading funds on chain
type WithdrawBackend interface {
	GetCryptoWithdrawFees(ctx context.Context, asset money.Currency, product custodial.Product) (custodial.WithdrawFees, error)
	TransferFundsToWallet(ctx context.Context, amount money.Money, address, memo, description string) (string, error)
}

// TransferBackend moves custodial funds of a product to an address
type TransferBackend interface {
	TransferFunds(ctx context.Context, product custodial.Product, amount money.Money, address string) (string, error)
}

// InterestBackend exposes interest account deposit limits
type InterestBackend interface {
	GetInterestLimits(ctx context.Context, asset money.Currency) (*custodial.Limits, error)
}

// ProductTransferBackend moves funds between custodial products
type ProductTransferBackend interface {
	InterestBackend
	TransferBetweenProducts(ctx context.Context, amount money.Money, origin, destination custodial.Product) (string, error)
}

// BankBackend moves fiat between linked banks and fiat accounts
type BankBackend interface {
	GetBankTransferLimits(ctx context.Context, fiat money.Currency) (custodial.Limits, error)
	StartBankTransfer(ctx context.Context, bankID string, amount money.Money) (string, error)
	GetBankTransferCharge(ctx context.Context, paymentID string) (custodial.BankTransferCharge, error)
	CreateWithdrawOrder(ctx context.Context, amount money.Money, bankID string) (string, error)
}

// Backend is everything the engines need from the custodial service.
// *custodial.Client implements it.
type Backend interface {
	SellBackend
	SwapBackend
	WithdrawBackend
	TransferBackend
	ProductTransferBackend
	BankBackend
}

var _ Backend = (*custodial.Client)(nil)
