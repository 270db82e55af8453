package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

func eth(major string) money.Money {
	m, err := money.Parse(money.ETH, major)
	if err != nil {
		panic(err)
	}
	return m
}

func ethTradingTarget() account.AccountRef {
	ethTrading := account.NewStatic("ETH Trading", account.SourceTrading, money.ETH, "", eth("0"), eth("0"))
	return account.AccountRef{Kind: account.TargetCryptoAccount, Account: ethTrading}
}

// newSwapBackend quotes 1 BTC at 15 ETH with a 0.015 ETH network fee
func newSwapBackend() *fakeBackend {
	b := newBackend()
	b.rate = decimal.NewFromInt(15)
	b.quoteFee = eth("0.015")
	return b
}

func newSwap(t *testing.T, b *fakeBackend, rates tx.RateProvider) (*SwapEngine, *tx.Processor, tx.PendingTx) {
	t.Helper()
	e := NewSwapEngine(tradingSource(), ethTradingTarget(), b, b, rates, money.USD)
	p := tx.NewProcessor(e, rates, money.USD, nil)
	ptx, err := p.Initialize(context.Background())
	require.NoError(t, err)
	return e, p, ptx
}

func TestSwapInitialize(t *testing.T) {
	b := newSwapBackend()
	_, _, ptx := newSwap(t, b, testRates)

	assert.Equal(t, tx.ValidationUninitialised, ptx.ValidationState)
	assert.Equal(t, []tx.FeeLevel{tx.FeeLevelNone}, ptx.FeeSelection.AvailableLevels)
	assert.True(t, ptx.FeeAmount.Equal(money.Zero(money.BTC)))
	assert.Contains(t, b.Calls(), "swap limits BTC-ETH in USD")
}

func TestSwapValidation(t *testing.T) {
	// $20 to $20000 at 20000 USD/BTC is 0.001 to 1 BTC; the fee adds 0.001
	tests := []struct {
		name   string
		amount string
		want   tx.ValidationState
	}{
		{"within limits", "0.5", tx.ValidationCanExecute},
		{"exactly min with fee", "0.002", tx.ValidationCanExecute},
		{"under min with fee", "0.0015", tx.ValidationUnderMinLimit},
		{"exactly max", "1", tx.ValidationCanExecute},
		{"above max", "1.2", tx.ValidationOverMaxLimit},
		{"above balance", "1.6", tx.ValidationInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p, ptx := newSwap(t, newSwapBackend(), testRates)

			ptx, err := p.UpdateAmount(context.Background(), ptx, btc(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ptx.ValidationState)
		})
	}
}

func TestSwapLimitsInSourceAsset(t *testing.T) {
	_, p, ptx := newSwap(t, newSwapBackend(), testRates)

	ptx, err := p.UpdateAmount(context.Background(), ptx, btc("0.5"))
	require.NoError(t, err)
	require.NotNil(t, ptx.MinLimit)
	require.NotNil(t, ptx.MaxLimit)
	assert.True(t, ptx.MinLimit.Equal(btc("0.002")), "got %s", ptx.MinLimit)
	assert.True(t, ptx.MaxLimit.Equal(btc("1")), "got %s", ptx.MaxLimit)
}

func TestSwapMissingLimits(t *testing.T) {
	b := newSwapBackend()
	b.swapLimitsErr = errBackend
	_, p, ptx := newSwap(t, b, testRates)

	ptx, err := p.UpdateAmount(context.Background(), ptx, btc("0.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)
	assert.Nil(t, ptx.MinLimit)
}

func TestSwapLimitsInOtherCurrency(t *testing.T) {
	b := newSwapBackend()
	b.swapLimits = custodial.Limits{Min: gbp("20"), Max: gbp("20000")}
	_, p, ptx := newSwap(t, b, testRates)

	ptx, err := p.UpdateAmount(context.Background(), ptx, btc("0.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)
}

func TestSwapWithoutMarketRate(t *testing.T) {
	_, p, ptx := newSwap(t, newSwapBackend(), fixedRates{})

	ptx, err := p.UpdateAmount(context.Background(), ptx, btc("0.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)
}

func TestSwapConfirmations(t *testing.T) {
	_, p, ptx := newSwap(t, newSwapBackend(), testRates)
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)

	price, ok := tx.OptionAs[tx.ExchangePriceOption](ptx, tx.OptionExchangePrice)
	require.True(t, ok)
	assert.True(t, price.Price.Equal(eth("15")))

	receive, ok := tx.OptionAs[tx.ReceiveAmountOption](ptx, tx.OptionReceiveAmount)
	require.True(t, ok)
	assert.True(t, receive.Amount.Equal(eth("7.5")), "got %s", receive.Amount)
	require.NotNil(t, receive.Fiat)
	assert.True(t, receive.Fiat.Equal(usd("15000")))

	fee, ok := tx.OptionAs[tx.NetworkFeeOption](ptx, tx.OptionNetworkFee)
	require.True(t, ok)
	assert.True(t, fee.Fee.Equal(eth("0.015")))

	total, ok := tx.OptionAs[tx.TotalOption](ptx, tx.OptionTotal)
	require.True(t, ok)
	assert.True(t, total.Amount.Equal(btc("0.5")))

	to, ok := tx.OptionAs[tx.ToOption](ptx, tx.OptionTo)
	require.True(t, ok)
	assert.Equal(t, "ETH Trading", to.Label)
}

func TestSwapExecute(t *testing.T) {
	b := newSwapBackend()
	_, p, ptx := newSwap(t, b, testRates)
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)

	res, err := p.Execute(ctx, ptx, "")
	require.NoError(t, err)
	assert.False(t, res.IsHashed())
	assert.Equal(t, "order-1", res.ID())
	assert.True(t, res.Amount.Equal(btc("0.5")))

	require.Len(t, b.orders, 1)
	order := b.orders[0]
	assert.Equal(t, money.BTC, order.Asset)
	assert.Equal(t, money.ETH, order.Counter)
	assert.Equal(t, custodial.ActionSwap, order.Action)
	assert.NotEmpty(t, order.QuoteID)
	for _, c := range b.Calls() {
		assert.False(t, strings.HasPrefix(c, "confirm"), "swap orders settle on create")
	}
}

func TestSwapExpiredQuote(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newSwapBackend()
	b.quoteExpiry = issued.Add(time.Minute)
	e, p, ptx := newSwap(t, b, testRates)
	e.now = func() time.Time { return issued }
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	assert.True(t, ptx.HasOption(tx.OptionInvoiceCountdown))

	e.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = p.Execute(ctx, ptx, "")
	assert.ErrorIs(t, err, tx.ErrUnexpected)
	assert.Empty(t, b.orders)
}

func TestSwapRejectsOtherAsset(t *testing.T) {
	_, p, ptx := newSwap(t, newSwapBackend(), testRates)

	_, err := p.UpdateAmount(context.Background(), ptx, eth("1"))
	assert.ErrorIs(t, err, tx.ErrCurrencyMismatch)
}
