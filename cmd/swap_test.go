package cmd

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/money"
	"walletcore/pkg/rates"
	"walletcore/pkg/tx"
)

func TestMarketPrice(t *testing.T) {
	rp, err := rates.NewStatic(map[string]string{"BTC-USD": "20000", "ETH-USD": "2000"})
	require.NoError(t, err)

	price, err := marketPrice(context.Background(), rp, money.BTC, money.ETH)
	require.NoError(t, err)
	assert.True(t, price.Equal(money.FromMajor(money.ETH, decimal.NewFromInt(10))), "got %s", price)

	_, err = marketPrice(context.Background(), rp, money.BTC, money.SOL)
	assert.Error(t, err)
}

func TestParseSwapRequest(t *testing.T) {
	req, amount, err := parseRequest("swap", []string{"0.1", "wbtc", "to", "ETH"})
	require.NoError(t, err)
	assert.Equal(t, "ETH", req.Target)
	assert.Equal(t, money.BTC, amount.Currency())

	_, _, err = parseRequest("swap", []string{"0.1", "BTC"})
	assert.Error(t, err)
}

func TestDescribeReceiveAmount(t *testing.T) {
	usd := money.FromMinor(money.USD, 1500000)
	row, ok := describeOption(tx.ReceiveAmountOption{Amount: money.FromMajor(money.ETH, decimal.RequireFromString("7.5")), Fiat: &usd})
	require.True(t, ok)
	assert.Equal(t, "You receive", row.Label)
	assert.Contains(t, row.Value, "7.5 ETH")
}
