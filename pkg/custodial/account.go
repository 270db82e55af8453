package custodial

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"walletcore/pkg/account"
	"walletcore/pkg/money"
)

type addressDTO struct {
	Address string `json:"address"`
	Memo    string `json:"memo,omitempty"`
}

// DepositAddress returns the address funds of asset must be sent to in
// order to land in product
func (c *Client) DepositAddress(ctx context.Context, product Product, asset money.Currency) (string, error) {
	q := url.Values{}
	q.Set("product", string(product))
	q.Set("asset", asset.Code)

	var dto addressDTO
	if err := c.do(ctx, http.MethodGet, "/deposit-addresses", q, nil, &dto); err != nil {
		return "", err
	}
	return dto.Address, nil
}

// Account is one custodial holding used as a transaction source or target
type Account struct {
	AccountBalances
	Name string
}

// NewAccount builds the account for asset in product. Fiat assets always
// live in the trading product.
func NewAccount(c *Client, product Product, asset money.Currency) *Account {
	return &Account{
		AccountBalances: AccountBalances{Client: c, Product: product, Asset: asset},
		Name:            accountName(product, asset),
	}
}

func accountName(product Product, asset money.Currency) string {
	switch {
	case asset.IsFiat():
		return fmt.Sprintf("%s Wallet", asset.Code)
	case product == ProductInterest:
		return fmt.Sprintf("%s Rewards Account", asset.Code)
	default:
		return fmt.Sprintf("%s Trading Account", asset.Code)
	}
}

func (a *Account) Label() string            { return a.Name }
func (a *Account) Currency() money.Currency { return a.Asset }

func (a *Account) Kind() account.SourceKind {
	switch {
	case a.Asset.IsFiat():
		return account.SourceFiat
	case a.Product == ProductInterest:
		return account.SourceInterest
	default:
		return account.SourceTrading
	}
}

// TargetKind is the kind the account has when it receives funds
func (a *Account) TargetKind() account.TargetKind {
	switch {
	case a.Asset.IsFiat():
		return account.TargetFiatAccount
	case a.Product == ProductInterest:
		return account.TargetInterestAccount
	default:
		return account.TargetCryptoAccount
	}
}

// ReceiveAddress asks the backend for the deposit address. Fiat wallets
// have none.
func (a *Account) ReceiveAddress(ctx context.Context) (string, error) {
	if a.Asset.IsFiat() {
		return "", nil
	}
	return a.Client.DepositAddress(ctx, a.Product, a.Asset)
}

var (
	_ account.Source        = (*Account)(nil)
	_ account.AccountTarget = (*Account)(nil)
)
