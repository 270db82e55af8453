package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

var errBackend = errors.New("backend down")

type fakeUnsigned struct {
	req SendRequest
	fee money.Money
}

func (u fakeUnsigned) Fee() money.Money { return u.fee }

// fakeSigner charges a flat fee per level, in minor units of the fee asset.
// Like the chain signers it refuses to price a non-positive custom fee.
type fakeSigner struct {
	asset      money.Currency
	feeAsset   money.Currency
	levels     []tx.FeeLevel
	memo       bool
	feeBalance money.Money
	fees       map[tx.FeeLevel]int64
	limits     *tx.FeeLimits
	pending    bool

	broadcastErr error
	built        []SendRequest
	passwords    []string
}

func newBTCSigner() *fakeSigner {
	return &fakeSigner{
		asset:    money.BTC,
		feeAsset: money.BTC,
		levels:   []tx.FeeLevel{tx.FeeLevelRegular, tx.FeeLevelPriority, tx.FeeLevelCustom},
		fees:     map[tx.FeeLevel]int64{tx.FeeLevelRegular: 1000, tx.FeeLevelPriority: 5000},
		limits:   &tx.FeeLimits{Min: 10, Max: 100},
	}
}

func newUSDCSigner(gas money.Money) *fakeSigner {
	return &fakeSigner{
		asset:      money.USDC,
		feeAsset:   money.ETH,
		levels:     []tx.FeeLevel{tx.FeeLevelRegular, tx.FeeLevelPriority},
		feeBalance: gas,
		fees:       map[tx.FeeLevel]int64{tx.FeeLevelRegular: 2_000_000_000_000_000, tx.FeeLevelPriority: 4_000_000_000_000_000},
	}
}

func (s *fakeSigner) Asset() money.Currency    { return s.asset }
func (s *fakeSigner) FeeAsset() money.Currency { return s.feeAsset }
func (s *fakeSigner) FeeLevels() []tx.FeeLevel { return s.levels }
func (s *fakeSigner) SupportsMemo() bool       { return s.memo }

func (s *fakeSigner) Balances(context.Context) (money.Money, money.Money, error) {
	return money.Zero(s.asset), money.Zero(s.asset), nil
}

func (s *fakeSigner) FeeBalance(context.Context) (money.Money, error) {
	return s.feeBalance, nil
}

func (s *fakeSigner) EstimateFee(_ context.Context, _ money.Money, level tx.FeeLevel, custom int64) (money.Money, error) {
	if level == tx.FeeLevelCustom {
		if custom <= 0 {
			return money.Money{}, fmt.Errorf("custom fee must be positive, got %d", custom)
		}
		return money.FromMinor(s.feeAsset, custom), nil
	}
	fee, ok := s.fees[level]
	if !ok {
		return money.Money{}, fmt.Errorf("no fee for %s", level)
	}
	return money.FromMinor(s.feeAsset, fee), nil
}

func (s *fakeSigner) CustomFeeLimits(context.Context) (*tx.FeeLimits, error) {
	return s.limits, nil
}

func (s *fakeSigner) HasPendingTx(context.Context) (bool, error) {
	return s.pending, nil
}

func (s *fakeSigner) BuildTransaction(ctx context.Context, req SendRequest) (UnsignedTx, error) {
	fee, err := s.EstimateFee(ctx, req.Amount, req.Level, req.CustomFee)
	if err != nil {
		return nil, err
	}
	s.built = append(s.built, req)
	return fakeUnsigned{req: req, fee: fee}, nil
}

func (s *fakeSigner) SignAndBroadcast(_ context.Context, _ UnsignedTx, secondPassword string) (string, error) {
	s.passwords = append(s.passwords, secondPassword)
	if s.broadcastErr != nil {
		return "", s.broadcastErr
	}
	return fmt.Sprintf("0xhash%d", len(s.passwords)), nil
}

type fakeResolver map[string]OnChainSigner

func (r fakeResolver) SignerFor(asset money.Currency) (OnChainSigner, error) {
	s, ok := r[asset.Code]
	if !ok {
		return nil, fmt.Errorf("no signer for %s", asset.Code)
	}
	return s, nil
}

// fakeBackend records every call in order
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	rate          decimal.Decimal
	quoteFee      money.Money
	quoteExpiry   time.Time
	sellLimits    custodial.Limits
	sellLimitsErr error
	confirmErr    error

	swapLimits    custodial.Limits
	swapLimitsErr error
	orders        []custodial.OrderRequest

	withdrawMin money.Money

	interestLimits    *custodial.Limits
	interestLimitsErr error

	bankLimits    custodial.Limits
	bankLimitsErr error
	authURL       string
	chargeReadyAt int
	charges       int

	transfers []money.Money
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		rate:     decimal.NewFromInt(20000),
		quoteFee: money.Zero(money.USD),
		sellLimits: custodial.Limits{
			Min: money.FromMinor(money.USD, 1000),
			Max: money.FromMinor(money.USD, 5_000_000),
		},
		swapLimits: custodial.Limits{
			Min: money.FromMinor(money.USD, 2000),
			Max: money.FromMinor(money.USD, 2_000_000),
		},
		withdrawMin: money.FromMinor(money.BTC, 10_000),
		bankLimits: custodial.Limits{
			Min: money.FromMinor(money.GBP, 500),
			Max: money.FromMinor(money.GBP, 100_000),
		},
	}
}

func (b *fakeBackend) record(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) GetQuote(_ context.Context, asset, counter money.Currency, action custodial.Action, amount money.Money) (custodial.Quote, error) {
	b.record("quote %s", amount)
	return custodial.Quote{
		ID:        fmt.Sprintf("q-%d", len(b.Calls())),
		Asset:     asset,
		Counter:   counter,
		Rate:      b.rate,
		Fee:       b.quoteFee,
		ExpiresAt: b.quoteExpiry,
	}, nil
}

func (b *fakeBackend) GetSellLimits(context.Context, money.Currency, money.Currency) (custodial.Limits, error) {
	b.record("sell limits")
	return b.sellLimits, b.sellLimitsErr
}

func (b *fakeBackend) CancelAllPendingOrders(_ context.Context, asset money.Currency) error {
	b.record("cancel %s", asset.Code)
	return nil
}

func (b *fakeBackend) GetSwapLimits(_ context.Context, from, to, fiat money.Currency) (custodial.Limits, error) {
	b.record("swap limits %s-%s in %s", from.Code, to.Code, fiat.Code)
	return b.swapLimits, b.swapLimitsErr
}

func (b *fakeBackend) CreateOrder(_ context.Context, req custodial.OrderRequest) (custodial.Order, error) {
	b.record("create %s %s", req.Amount, req.QuoteID)
	b.mu.Lock()
	b.orders = append(b.orders, req)
	b.mu.Unlock()
	return custodial.Order{ID: "order-1", State: custodial.OrderPendingConfirmation, Input: req.Amount}, nil
}

func (b *fakeBackend) ConfirmOrder(_ context.Context, id string) (custodial.Order, error) {
	b.record("confirm %s", id)
	if b.confirmErr != nil {
		return custodial.Order{}, b.confirmErr
	}
	return custodial.Order{ID: id, State: custodial.OrderFinished}, nil
}

func (b *fakeBackend) GetCryptoWithdrawFees(_ context.Context, asset money.Currency, _ custodial.Product) (custodial.WithdrawFees, error) {
	b.record("withdraw fees %s", asset.Code)
	return custodial.WithdrawFees{Fee: money.Zero(asset), MinLimit: b.withdrawMin}, nil
}

func (b *fakeBackend) TransferFundsToWallet(_ context.Context, amount money.Money, address, memo, description string) (string, error) {
	b.record("withdraw %s to %s memo=%q note=%q", amount, address, memo, description)
	return "wd-1", nil
}

func (b *fakeBackend) TransferFunds(_ context.Context, product custodial.Product, amount money.Money, address string) (string, error) {
	b.record("transfer %s %s to %s", product, amount, address)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transfers = append(b.transfers, amount)
	return fmt.Sprintf("tr-%d", len(b.transfers)), nil
}

func (b *fakeBackend) GetInterestLimits(context.Context, money.Currency) (*custodial.Limits, error) {
	b.record("interest limits")
	return b.interestLimits, b.interestLimitsErr
}

func (b *fakeBackend) TransferBetweenProducts(_ context.Context, amount money.Money, origin, destination custodial.Product) (string, error) {
	b.record("internal %s %s to %s", amount, origin, destination)
	return "it-1", nil
}

func (b *fakeBackend) GetBankTransferLimits(_ context.Context, fiat money.Currency) (custodial.Limits, error) {
	b.record("bank limits %s", fiat.Code)
	return b.bankLimits, b.bankLimitsErr
}

func (b *fakeBackend) StartBankTransfer(_ context.Context, bankID string, amount money.Money) (string, error) {
	b.record("bank transfer %s from %s", amount, bankID)
	return "pay-1", nil
}

func (b *fakeBackend) GetBankTransferCharge(_ context.Context, paymentID string) (custodial.BankTransferCharge, error) {
	b.mu.Lock()
	b.charges++
	n := b.charges
	b.mu.Unlock()
	b.record("charge %s", paymentID)
	if n < b.chargeReadyAt {
		return custodial.BankTransferCharge{PaymentID: paymentID, State: "PENDING"}, nil
	}
	return custodial.BankTransferCharge{PaymentID: paymentID, State: "AUTHORISED", AuthorisationURL: b.authURL}, nil
}

func (b *fakeBackend) CreateWithdrawOrder(_ context.Context, amount money.Money, bankID string) (string, error) {
	b.record("fiat withdraw %s to %s", amount, bankID)
	return "fw-1", nil
}

type fixedRates map[string]decimal.Decimal

func (r fixedRates) Rate(_ context.Context, from, to money.Currency) (money.ExchangeRate, error) {
	v, ok := r[from.Code+"-"+to.Code]
	if !ok {
		return money.ExchangeRate{}, fmt.Errorf("no rate %s-%s", from.Code, to.Code)
	}
	return money.NewRate(from, to, v)
}

var testRates = fixedRates{
	"BTC-USD": decimal.NewFromInt(20000),
	"ETH-USD": decimal.NewFromInt(2000),
	"USDC-USD": decimal.NewFromInt(1),
}

func btc(major string) money.Money {
	m, err := money.Parse(money.BTC, major)
	if err != nil {
		panic(err)
	}
	return m
}

func usd(major string) money.Money {
	m, err := money.Parse(money.USD, major)
	if err != nil {
		panic(err)
	}
	return m
}
