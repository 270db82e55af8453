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

// Limits in the wrong currency are treated like limits that failed to load

func TestInterestLimitsInOtherCurrencyIgnored(t *testing.T) {
	b := newBackend()
	b.interestLimits = &custodial.Limits{Min: usd("100")}
	p, ptx := newInterestDeposit(t, b, newBTCSigner())
	assert.Nil(t, ptx.MinLimit)

	ptx, err := p.UpdateAmount(context.Background(), ptx, btc("0.001"))
	require.NoError(t, err)
	assert.Nil(t, ptx.MinLimit)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)
}

func TestBankLimitsInOtherCurrency(t *testing.T) {
	b := newBackend()
	eurMin, err := money.Parse(money.EUR, "5")
	require.NoError(t, err)
	b.bankLimits = custodial.Limits{Min: eurMin}

	_, p, ptx := newFiatDeposit(t, b, testBank)
	assert.Nil(t, ptx.MinLimit)
	ptx, err = p.UpdateAmount(context.Background(), ptx, gbp("50"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)

	wp, wptx := newFiatWithdrawal(t, b)
	wptx, err = wp.UpdateAmount(context.Background(), wptx, gbp("50"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, wptx.ValidationState)
}

func TestBankLimitsMaxInOtherCurrency(t *testing.T) {
	b := newBackend()
	b.bankLimits = custodial.Limits{Min: gbp("5"), Max: usd("1000")}

	_, p, ptx := newFiatDeposit(t, b, testBank)
	assert.Nil(t, ptx.MaxLimit)
	ptx, err := p.UpdateAmount(context.Background(), ptx, gbp("50"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)
}

func TestTradingWithdrawMinInOtherCurrencyIgnored(t *testing.T) {
	b := newBackend()
	b.withdrawMin = money.FromMinor(money.ETH, 1)
	target := account.CryptoAddress{Asset: money.BTC, Address: "bc1qdest"}
	e := NewTradingEngine(tradingSource(), target, "bc1qdest", "", b, testRates, money.USD, false)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ctx := context.Background()

	ptx, err := p.Initialize(ctx)
	require.NoError(t, err)
	assert.Nil(t, ptx.MinLimit)

	ptx, err = p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)
}

func TestSellLimitsInOtherCurrency(t *testing.T) {
	b := newBackend()
	b.sellLimits = custodial.Limits{Min: gbp("10"), Max: gbp("50000")}
	_, p, ptx := newSellProcessor(t, b)
	assert.Nil(t, ptx.MinLimit)

	ptx, err := p.UpdateAmount(context.Background(), ptx, usd("100"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)
}

func TestFiatNegativeAmountIsInvalid(t *testing.T) {
	negative := money.FromMinor(money.GBP, -500)

	_, p, ptx := newFiatDeposit(t, newBackend(), testBank)
	ptx, err := p.UpdateAmount(context.Background(), ptx, negative)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationInvalidAmount, ptx.ValidationState)

	wp, wptx := newFiatWithdrawal(t, newBackend())
	wptx, err = wp.UpdateAmount(context.Background(), wptx, negative)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationInvalidAmount, wptx.ValidationState)
}
