package custodial

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"walletcore/pkg/money"
	"walletcore/pkg/pricing"
)

// APIError is a non-2xx answer from the custodial backend
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("custodial api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("custodial api: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the custodial order backend over REST
type Client struct {
	http *resty.Client
}

// NewClient creates a client for baseURL. apiKey is sent as a bearer
// token when set.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		rc.SetAuthToken(apiKey)
	}
	return &Client{http: rc}
}

type amountDTO struct {
	Currency string `json:"currency"`
	// Value is in minor units
	Value string `json:"value"`
}

func fromMoney(m money.Money) amountDTO {
	return amountDTO{Currency: m.Currency().Code, Value: m.Minor().String()}
}

func (a amountDTO) toMoney() (money.Money, error) {
	cur, ok := money.Lookup(a.Currency)
	if !ok {
		return money.Money{}, fmt.Errorf("unknown currency %q", a.Currency)
	}
	if a.Value == "" {
		return money.Zero(cur), nil
	}
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return money.Money{}, fmt.Errorf("invalid %s amount %q: %w", a.Currency, a.Value, err)
	}
	return money.FromMinorDecimal(cur, v), nil
}

type quoteDTO struct {
	ID        string    `json:"id"`
	Rate      string    `json:"rate"`
	Fee       amountDTO `json:"fee"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tierDTO struct {
	Volume string `json:"volume"`
	Price  string `json:"price"`
}

type transferQuoteDTO struct {
	ID         string    `json:"id"`
	Prices     []tierDTO `json:"prices"`
	NetworkFee amountDTO `json:"networkFee"`
	StaticFee  amountDTO `json:"staticFee"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type limitsDTO struct {
	Min amountDTO `json:"min"`
	Max amountDTO `json:"max"`
}

type withdrawFeesDTO struct {
	Fee      amountDTO `json:"fee"`
	MinLimit amountDTO `json:"minLimit"`
}

type orderRequestDTO struct {
	Pair    string    `json:"pair"`
	Action  Action    `json:"action"`
	Input   amountDTO `json:"input"`
	QuoteID string    `json:"quoteId,omitempty"`
}

type orderDTO struct {
	ID        string     `json:"id"`
	State     OrderState `json:"state"`
	Input     amountDTO  `json:"input"`
	Output    amountDTO  `json:"output"`
	CreatedAt time.Time  `json:"createdAt"`
}

type transferRequestDTO struct {
	Product     Product   `json:"product,omitempty"`
	Amount      amountDTO `json:"amount"`
	Address     string    `json:"address"`
	Memo        string    `json:"memo,omitempty"`
	Description string    `json:"description,omitempty"`
}

type internalTransferDTO struct {
	Origin      Product   `json:"origin"`
	Destination Product   `json:"destination"`
	Amount      amountDTO `json:"amount"`
}

type bankTransferRequestDTO struct {
	BankID string    `json:"bankId"`
	Amount amountDTO `json:"amount"`
}

type referenceDTO struct {
	ID        string `json:"id"`
	PaymentID string `json:"paymentId"`
}

type chargeDTO struct {
	PaymentID        string    `json:"paymentId"`
	State            string    `json:"state"`
	AuthorisationURL string    `json:"authorisationUrl"`
	Amount           amountDTO `json:"amount"`
}

type balanceDTO struct {
	Total      amountDTO `json:"total"`
	Actionable amountDTO `json:"actionable"`
}

func pair(asset, counter money.Currency) string {
	return asset.Code + "-" + counter.Code
}

// do sends one request. result must be a pointer or nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString()).
		SetError(&APIError{})
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}

// GetQuote prices amount of asset in counter, a fiat or another asset, for action
func (c *Client) GetQuote(ctx context.Context, asset, counter money.Currency, action Action, amount money.Money) (Quote, error) {
	q := url.Values{}
	q.Set("currencyPair", pair(asset, counter))
	q.Set("action", string(action))
	q.Set("amount", amount.Minor().String())
	q.Set("currency", amount.Currency().Code)

	var dto quoteDTO
	if err := c.do(ctx, http.MethodGet, "/quotes", q, nil, &dto); err != nil {
		return Quote{}, err
	}

	rate, err := decimal.NewFromString(dto.Rate)
	if err != nil {
		return Quote{}, errors.Wrapf(err, "quote %s rate %q", dto.ID, dto.Rate)
	}
	fee, err := dto.Fee.toMoney()
	if err != nil {
		fee = money.Zero(counter)
	}
	return Quote{
		ID:        dto.ID,
		Asset:     asset,
		Counter:   counter,
		Rate:      rate,
		Fee:       fee,
		ExpiresAt: dto.ExpiresAt,
	}, nil
}

// GetTransferQuote fetches a tiered quote for action
func (c *Client) GetTransferQuote(ctx context.Context, asset, counter money.Currency, action Action) (TransferQuote, error) {
	q := url.Values{}
	q.Set("currencyPair", pair(asset, counter))
	q.Set("action", string(action))

	var dto transferQuoteDTO
	if err := c.do(ctx, http.MethodGet, "/quotes/transfer", q, nil, &dto); err != nil {
		return TransferQuote{}, err
	}

	tiers := make([]pricing.Tier, 0, len(dto.Prices))
	for _, p := range dto.Prices {
		vol, err := decimal.NewFromString(p.Volume)
		if err != nil {
			return TransferQuote{}, errors.Wrapf(err, "tier volume %q", p.Volume)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return TransferQuote{}, errors.Wrapf(err, "tier price %q", p.Price)
		}
		tiers = append(tiers, pricing.Tier{Volume: vol, Price: price})
	}

	networkFee, err := dto.NetworkFee.toMoney()
	if err != nil {
		networkFee = money.Zero(counter)
	}
	staticFee, err := dto.StaticFee.toMoney()
	if err != nil {
		staticFee = money.Zero(counter)
	}

	return TransferQuote{
		ID:         dto.ID,
		Asset:      asset,
		Counter:    counter,
		Tiers:      tiers,
		NetworkFee: networkFee,
		StaticFee:  staticFee,
		ExpiresAt:  dto.ExpiresAt,
	}, nil
}

func (o orderDTO) toOrder() (Order, error) {
	in, err := o.Input.toMoney()
	if err != nil {
		return Order{}, err
	}
	// output is only known once the order is priced
	var out money.Money
	if o.Output.Currency != "" {
		if out, err = o.Output.toMoney(); err != nil {
			return Order{}, err
		}
	}
	return Order{ID: o.ID, State: o.State, Input: in, Output: out, CreatedAt: o.CreatedAt}, nil
}

// CreateOrder creates a custodial order awaiting confirmation
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	body := orderRequestDTO{
		Pair:    pair(req.Asset, req.Counter),
		Action:  req.Action,
		Input:   fromMoney(req.Amount),
		QuoteID: req.QuoteID,
	}
	var dto orderDTO
	if err := c.do(ctx, http.MethodPost, "/orders", nil, body, &dto); err != nil {
		return Order{}, err
	}
	return dto.toOrder()
}

// ConfirmOrder confirms an order created by CreateOrder
func (c *Client) ConfirmOrder(ctx context.Context, id string) (Order, error) {
	var dto orderDTO
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/confirm", nil, nil, &dto); err != nil {
		return Order{}, err
	}
	return dto.toOrder()
}

// CancelAllPendingOrders cancels every unconfirmed order for asset
func (c *Client) CancelAllPendingOrders(ctx context.Context, asset money.Currency) error {
	q := url.Values{}
	q.Set("asset", asset.Code)
	return c.do(ctx, http.MethodDelete, "/orders/pending", q, nil, nil)
}

func (l limitsDTO) toLimits() (Limits, error) {
	lo, err := l.Min.toMoney()
	if err != nil {
		return Limits{}, err
	}
	hi := money.Zero(lo.Currency())
	if l.Max.Value != "" {
		if hi, err = l.Max.toMoney(); err != nil {
			return Limits{}, err
		}
	}
	limits := Limits{Min: lo, Max: hi}
	if err := limits.In(lo.Currency()); err != nil {
		return Limits{}, err
	}
	return limits, nil
}

func (c *Client) limits(ctx context.Context, path string, q url.Values) (Limits, error) {
	var dto limitsDTO
	if err := c.do(ctx, http.MethodGet, path, q, nil, &dto); err != nil {
		return Limits{}, err
	}
	return dto.toLimits()
}

// GetSellLimits returns the fiat bounds of a sell order
func (c *Client) GetSellLimits(ctx context.Context, asset, fiat money.Currency) (Limits, error) {
	q := url.Values{}
	q.Set("currencyPair", pair(asset, fiat))
	return c.limits(ctx, "/limits/sell", q)
}

// GetSwapLimits returns the bounds of a swap from one asset into another,
// in fiat
func (c *Client) GetSwapLimits(ctx context.Context, from, to, fiat money.Currency) (Limits, error) {
	q := url.Values{}
	q.Set("currencyPair", pair(from, to))
	q.Set("currency", fiat.Code)
	return c.limits(ctx, "/limits/swap", q)
}

// GetBankTransferLimits returns the bounds of bank deposits and
// withdrawals in fiat
func (c *Client) GetBankTransferLimits(ctx context.Context, fiat money.Currency) (Limits, error) {
	q := url.Values{}
	q.Set("currency", fiat.Code)
	return c.limits(ctx, "/limits/bank-transfer", q)
}

// GetInterestLimits returns the deposit bounds of the interest account for
// asset, or nil when the asset has none
func (c *Client) GetInterestLimits(ctx context.Context, asset money.Currency) (*Limits, error) {
	q := url.Values{}
	q.Set("asset", asset.Code)
	l, err := c.limits(ctx, "/limits/interest", q)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetCryptoWithdrawFees returns the fee and minimum of a withdrawal
func (c *Client) GetCryptoWithdrawFees(ctx context.Context, asset money.Currency, product Product) (WithdrawFees, error) {
	q := url.Values{}
	q.Set("asset", asset.Code)
	q.Set("product", string(product))

	var dto withdrawFeesDTO
	if err := c.do(ctx, http.MethodGet, "/withdrawals/fees", q, nil, &dto); err != nil {
		return WithdrawFees{}, err
	}
	fee, err := dto.Fee.toMoney()
	if err != nil {
		return WithdrawFees{}, err
	}
	minLimit, err := dto.MinLimit.toMoney()
	if err != nil {
		return WithdrawFees{}, err
	}
	return WithdrawFees{Fee: fee, MinLimit: minLimit}, nil
}

// TransferFundsToWallet withdraws trading funds to an on-chain address and
// returns the backend reference
func (c *Client) TransferFundsToWallet(ctx context.Context, amount money.Money, address, memo, description string) (string, error) {
	body := transferRequestDTO{
		Product:     ProductTrading,
		Amount:      fromMoney(amount),
		Address:     address,
		Memo:        memo,
		Description: description,
	}
	var dto referenceDTO
	if err := c.do(ctx, http.MethodPost, "/withdrawals/crypto", nil, body, &dto); err != nil {
		return "", err
	}
	return dto.ID, nil
}

// TransferFunds moves custodial funds of product to address
func (c *Client) TransferFunds(ctx context.Context, product Product, amount money.Money, address string) (string, error) {
	body := transferRequestDTO{
		Product: product,
		Amount:  fromMoney(amount),
		Address: address,
	}
	var dto referenceDTO
	if err := c.do(ctx, http.MethodPost, "/transfers", nil, body, &dto); err != nil {
		return "", err
	}
	return dto.ID, nil
}

// TransferBetweenProducts moves amount from one custodial product to
// another without touching the chain
func (c *Client) TransferBetweenProducts(ctx context.Context, amount money.Money, origin, destination Product) (string, error) {
	body := internalTransferDTO{
		Origin:      origin,
		Destination: destination,
		Amount:      fromMoney(amount),
	}
	var dto referenceDTO
	if err := c.do(ctx, http.MethodPost, "/transfers/internal", nil, body, &dto); err != nil {
		return "", err
	}
	return dto.ID, nil
}

// StartBankTransfer pulls amount from the linked bank and returns the
// payment id
func (c *Client) StartBankTransfer(ctx context.Context, bankID string, amount money.Money) (string, error) {
	body := bankTransferRequestDTO{BankID: bankID, Amount: fromMoney(amount)}
	var dto referenceDTO
	if err := c.do(ctx, http.MethodPost, "/bank-transfers", nil, body, &dto); err != nil {
		return "", err
	}
	if dto.PaymentID == "" {
		return dto.ID, nil
	}
	return dto.PaymentID, nil
}

// GetBankTransferCharge returns the state of an open banking payment
func (c *Client) GetBankTransferCharge(ctx context.Context, paymentID string) (BankTransferCharge, error) {
	var dto chargeDTO
	if err := c.do(ctx, http.MethodGet, "/bank-transfers/"+url.PathEscape(paymentID), nil, nil, &dto); err != nil {
		return BankTransferCharge{}, err
	}
	amount, err := dto.Amount.toMoney()
	if err != nil {
		return BankTransferCharge{}, err
	}
	return BankTransferCharge{
		PaymentID:        dto.PaymentID,
		State:            dto.State,
		AuthorisationURL: dto.AuthorisationURL,
		Amount:           amount,
	}, nil
}

// CreateWithdrawOrder sends amount of fiat to the linked bank
func (c *Client) CreateWithdrawOrder(ctx context.Context, amount money.Money, bankID string) (string, error) {
	body := bankTransferRequestDTO{BankID: bankID, Amount: fromMoney(amount)}
	var dto referenceDTO
	if err := c.do(ctx, http.MethodPost, "/withdrawals/fiat", nil, body, &dto); err != nil {
		return "", err
	}
	return dto.ID, nil
}

// Balances returns the total and actionable balance of asset in product
func (c *Client) Balances(ctx context.Context, product Product, asset money.Currency) (money.Money, money.Money, error) {
	q := url.Values{}
	q.Set("product", string(product))
	q.Set("asset", asset.Code)

	var dto balanceDTO
	if err := c.do(ctx, http.MethodGet, "/balances", q, nil, &dto); err != nil {
		return money.Money{}, money.Money{}, err
	}
	total, err := dto.Total.toMoney()
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	actionable, err := dto.Actionable.toMoney()
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	return total, actionable, nil
}

// AccountBalances adapts one product balance of the client to the
// account balance provider contract
type AccountBalances struct {
	Client  *Client
	Product Product
	Asset   money.Currency
}

func (b AccountBalances) Balance(ctx context.Context) (money.Money, error) {
	total, _, err := b.Client.Balances(ctx, b.Product, b.Asset)
	return total, err
}

func (b AccountBalances) ActionableBalance(ctx context.Context) (money.Money, error) {
	_, actionable, err := b.Client.Balances(ctx, b.Product, b.Asset)
	return actionable, err
}
