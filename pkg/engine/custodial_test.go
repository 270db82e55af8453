package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

func tradingSource() *account.Static {
	return account.NewStatic("Trading BTC", account.SourceTrading, money.BTC, "", btc("2"), btc("1.5"))
}

func TestTradingValidation(t *testing.T) {
	b := newBackend()
	target := account.CryptoAddress{Asset: money.BTC, Address: "bc1qdest"}
	e := NewTradingEngine(tradingSource(), target, "bc1qdest", "", b, testRates, money.USD, false)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ctx := context.Background()

	ptx, err := p.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, ptx.MinLimit)
	assert.True(t, ptx.MinLimit.Equal(sats(10_000)))
	assert.True(t, ptx.AvailableBalance.Equal(btc("1.5")))

	tests := []struct {
		amount string
		want   tx.ValidationState
	}{
		{"0.5", tx.ValidationCanExecute},
		{"1.5", tx.ValidationCanExecute},
		{"1.6", tx.ValidationInsufficientFunds},
		{"0.00001", tx.ValidationInvalidAmount},
	}
	for _, tt := range tests {
		next, err := p.UpdateAmount(ctx, ptx, btc(tt.amount))
		require.NoError(t, err)
		assert.Equal(t, tt.want, next.ValidationState, tt.amount)
		assert.True(t, next.FeeAmount.IsZero())
	}
}

func TestTradingExecute(t *testing.T) {
	b := newBackend()
	target := account.CryptoAddress{Asset: money.BTC, Address: "bc1qdest"}
	e := NewTradingEngine(tradingSource(), target, "bc1qdest", "tag-7", b, testRates, money.USD, true)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ctx := context.Background()

	ptx, err := p.Initialize(ctx)
	require.NoError(t, err)
	ptx, err = p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	require.True(t, ptx.HasOption(tx.OptionDescription))

	ptx, err = p.SetOption(ctx, ptx, tx.DescriptionOption{Text: "rent"})
	require.NoError(t, err)

	res, err := p.Execute(ctx, ptx, "")
	require.NoError(t, err)
	assert.False(t, res.IsHashed())
	assert.Equal(t, "wd-1", res.ID())

	calls := b.Calls()
	assert.Contains(t, calls, `withdraw 0.50000000 BTC to bc1qdest memo="tag-7" note="rent"`)
}

func TestTradingWithoutNotes(t *testing.T) {
	target := account.CryptoAddress{Asset: money.BTC, Address: "bc1qdest"}
	e := NewTradingEngine(tradingSource(), target, "bc1qdest", "", newBackend(), testRates, money.USD, false)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ctx := context.Background()

	ptx, err := p.Initialize(ctx)
	require.NoError(t, err)
	ptx, err = p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)

	assert.False(t, ptx.HasOption(tx.OptionDescription))
	_, err = p.SetOption(ctx, ptx, tx.DescriptionOption{Text: "rent"})
	assert.ErrorIs(t, err, tx.ErrUnsupportedOption)
}

func newTransfer(t *testing.T, b *fakeBackend, product custodial.Product) (*tx.Processor, tx.PendingTx) {
	t.Helper()
	target := account.CryptoAddress{Asset: money.BTC, Address: "bc1qdest"}
	e := NewTransferEngine(tradingSource(), target, "bc1qdest", product, b, testRates, money.USD)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ptx, err := p.Initialize(context.Background())
	require.NoError(t, err)
	return p, ptx
}

func TestTransferRejectsOverBalanceEagerly(t *testing.T) {
	p, ptx := newTransfer(t, newBackend(), custodial.ProductTrading)

	_, err := p.UpdateAmount(context.Background(), ptx, btc("1.6"))
	assert.ErrorIs(t, err, tx.ErrInsufficientFunds)

	next, err := p.UpdateAmount(context.Background(), ptx, btc("1.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, next.ValidationState)
}

func TestTransferExecuteTwiceSendsTwice(t *testing.T) {
	b := newBackend()
	p, ptx := newTransfer(t, b, custodial.ProductInterest)
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.1"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)

	total, ok := tx.OptionAs[tx.TotalOption](ptx, tx.OptionTotal)
	require.True(t, ok)
	require.NotNil(t, total.Fiat)
	assert.True(t, total.Fiat.Equal(usd("2000")))

	first, err := p.Execute(ctx, ptx, "")
	require.NoError(t, err)
	second, err := p.Execute(ctx, ptx, "")
	require.NoError(t, err)

	assert.Equal(t, "tr-1", first.ID())
	assert.Equal(t, "tr-2", second.ID())
	assert.Len(t, b.transfers, 2)
	assert.Contains(t, b.Calls(), "transfer SAVINGS 0.10000000 BTC to bc1qdest")
}

func TestTransferZeroAmount(t *testing.T) {
	p, ptx := newTransfer(t, newBackend(), custodial.ProductTrading)
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.1"))
	require.NoError(t, err)
	ptx, err = p.UpdateAmount(ctx, ptx, money.Zero(money.BTC))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationInvalidAmount, ptx.ValidationState)

	_, err = p.Execute(ctx, ptx, "")
	assert.ErrorIs(t, err, tx.ErrInvalidDestinationAmount)
}
