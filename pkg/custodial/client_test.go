package custodial

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/money"
	"walletcore/pkg/pricing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret", 5*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quotes", r.URL.Path)
		assert.Equal(t, "BTC-USD", r.URL.Query().Get("currencyPair"))
		assert.Equal(t, "SELL", r.URL.Query().Get("action"))
		assert.Equal(t, "500000", r.URL.Query().Get("amount"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		writeJSON(w, http.StatusOK, map[string]any{
			"id":   "q1",
			"rate": "20000",
			"fee":  map[string]string{"currency": "USD", "value": "150"},
		})
	})

	q, err := c.GetQuote(context.Background(), money.BTC, money.USD, ActionSell, money.FromMinor(money.BTC, 500000))
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
	assert.True(t, q.Rate.Equal(decimal.NewFromInt(20000)))
	assert.True(t, q.Fee.Equal(money.FromMinor(money.USD, 150)))
	assert.False(t, q.Expired(time.Now()))
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "BAD_PAIR", "message": "unknown pair"})
	})

	_, err := c.GetQuote(context.Background(), money.BTC, money.USD, ActionSell, money.FromMinor(money.BTC, 1))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "BAD_PAIR", apiErr.Code)
}

func TestInterestLimitsNotFoundIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	l, err := c.GetInterestLimits(context.Background(), money.ETH)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestBankTransferLimits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EUR", r.URL.Query().Get("currency"))
		writeJSON(w, http.StatusOK, map[string]any{
			"min": map[string]string{"currency": "EUR", "value": "1000"},
			"max": map[string]string{"currency": "EUR", "value": "1000000"},
		})
	})

	l, err := c.GetBankTransferLimits(context.Background(), money.EUR)
	require.NoError(t, err)
	assert.True(t, l.Min.Equal(money.FromMinor(money.EUR, 1000)))
	assert.True(t, l.HasMax())
	assert.NoError(t, l.In(money.EUR))
	assert.ErrorIs(t, l.In(money.GBP), money.ErrCurrencyMismatch)
}

func TestLimitsRejectMixedCurrencies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"min": map[string]string{"currency": "EUR", "value": "1000"},
			"max": map[string]string{"currency": "USD", "value": "1000000"},
		})
	})

	_, err := c.GetBankTransferLimits(context.Background(), money.EUR)
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestSwapLimits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/limits/swap", r.URL.Path)
		assert.Equal(t, "BTC-ETH", r.URL.Query().Get("currencyPair"))
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		writeJSON(w, http.StatusOK, map[string]any{
			"min": map[string]string{"currency": "USD", "value": "1000"},
			"max": map[string]string{"currency": "USD", "value": "2500000"},
		})
	})

	l, err := c.GetSwapLimits(context.Background(), money.BTC, money.ETH, money.USD)
	require.NoError(t, err)
	assert.True(t, l.Min.Equal(money.FromMinor(money.USD, 1000)))
	assert.True(t, l.Max.Equal(money.FromMinor(money.USD, 2500000)))
}

func TestTransferBetweenProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfers/internal", r.URL.Path)
		var body internalTransferDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, ProductTrading, body.Origin)
		assert.Equal(t, ProductInterest, body.Destination)
		assert.Equal(t, "ETH", body.Amount.Currency)
		writeJSON(w, http.StatusOK, map[string]string{"id": "it-1"})
	})

	ref, err := c.TransferBetweenProducts(context.Background(), money.FromMinor(money.ETH, 1_000_000_000_000_000_000),
		ProductTrading, ProductInterest)
	require.NoError(t, err)
	assert.Equal(t, "it-1", ref)
}

func TestOrderLifecycle(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/orders/pending":
			w.WriteHeader(http.StatusNoContent)
		case "/orders":
			var body orderRequestDTO
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "BTC-USD", body.Pair)
			assert.Equal(t, "500000", body.Input.Value)
			writeJSON(w, http.StatusOK, map[string]any{
				"id":    "o1",
				"state": "PENDING_CONFIRMATION",
				"input": body.Input,
			})
		case "/orders/o1/confirm":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":     "o1",
				"state":  "FINISHED",
				"input":  map[string]string{"currency": "BTC", "value": "500000"},
				"output": map[string]string{"currency": "USD", "value": "10000"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	require.NoError(t, c.CancelAllPendingOrders(ctx, money.BTC))

	order, err := c.CreateOrder(ctx, OrderRequest{
		Asset:   money.BTC,
		Counter: money.USD,
		Action:  ActionSell,
		Amount:  money.FromMinor(money.BTC, 500000),
	})
	require.NoError(t, err)
	assert.Equal(t, OrderPendingConfirmation, order.State)

	order, err = c.ConfirmOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderFinished, order.State)
	assert.True(t, order.Output.Equal(money.FromMinor(money.USD, 10000)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"DELETE /orders/pending", "POST /orders", "POST /orders/o1/confirm"}, calls)
}

type fakeQuoter struct {
	quote TransferQuote
}

func (f fakeQuoter) GetTransferQuote(context.Context, money.Currency, money.Currency, Action) (TransferQuote, error) {
	return f.quote, nil
}

func TestTieredQuoteSource(t *testing.T) {
	src := NewTieredQuoteSource(fakeQuoter{quote: TransferQuote{
		ID: "tq",
		Tiers: []pricing.Tier{
			{Volume: decimal.NewFromInt(1), Price: decimal.NewFromInt(19000)},
			{Volume: decimal.NewFromInt(3), Price: decimal.NewFromInt(20000)},
		},
		NetworkFee: money.FromMinor(money.USD, 200),
		StaticFee:  money.FromMinor(money.USD, 50),
	}})
	ctx := context.Background()

	q, err := src.GetQuote(ctx, money.BTC, money.USD, ActionSell, money.FromMajor(money.BTC, decimal.NewFromInt(2)))
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.NewFromInt(19500)), "got %s", q.Rate)
	assert.True(t, q.Fee.Equal(money.FromMinor(money.USD, 250)))

	q, err = src.GetQuote(ctx, money.BTC, money.USD, ActionSell, money.FromMinor(money.BTC, 1000))
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.NewFromInt(19000)), "small volumes use the first tier")

	q, err = src.GetQuote(ctx, money.BTC, money.USD, ActionSell, money.FromMajor(money.BTC, decimal.NewFromInt(10)))
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.NewFromInt(20000)))

	// 38000 USD is 2 BTC at the first tier price
	q, err = src.GetQuote(ctx, money.BTC, money.USD, ActionSell, money.FromMajor(money.USD, decimal.NewFromInt(38000)))
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.NewFromInt(19500)), "got %s", q.Rate)

	_, err = src.GetQuote(ctx, money.BTC, money.USD, ActionSell, money.FromMinor(money.ETH, 1))
	assert.Error(t, err)
}
