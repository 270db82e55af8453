package custodial

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/account"
	"walletcore/pkg/money"
)

func TestAccountKinds(t *testing.T) {
	c := NewClient("http://localhost", "", 0)

	trading := NewAccount(c, ProductTrading, money.BTC)
	assert.Equal(t, account.SourceTrading, trading.Kind())
	assert.Equal(t, account.TargetCryptoAccount, trading.TargetKind())
	assert.Equal(t, "BTC Trading Account", trading.Label())

	interest := NewAccount(c, ProductInterest, money.ETH)
	assert.Equal(t, account.SourceInterest, interest.Kind())
	assert.Equal(t, account.TargetInterestAccount, interest.TargetKind())

	fiat := NewAccount(c, ProductTrading, money.EUR)
	assert.Equal(t, account.SourceFiat, fiat.Kind())
	assert.Equal(t, account.TargetFiatAccount, fiat.TargetKind())
	addr, err := fiat.ReceiveAddress(context.Background())
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestAccountReadsBackend(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SAVINGS", r.URL.Query().Get("product"))
		assert.Equal(t, "ETH", r.URL.Query().Get("asset"))
		switch r.URL.Path {
		case "/deposit-addresses":
			writeJSON(w, http.StatusOK, map[string]string{"address": "0xabc"})
		case "/balances":
			writeJSON(w, http.StatusOK, map[string]any{
				"total":      map[string]string{"currency": "ETH", "value": "3000"},
				"actionable": map[string]string{"currency": "ETH", "value": "2000"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	a := NewAccount(c, ProductInterest, money.ETH)
	ctx := context.Background()

	addr, err := a.ReceiveAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)

	total, err := a.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(money.FromMinor(money.ETH, 3000)))

	actionable, err := a.ActionableBalance(ctx)
	require.NoError(t, err)
	assert.True(t, actionable.Equal(money.FromMinor(money.ETH, 2000)))
}
