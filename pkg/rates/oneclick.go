package rates

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletcore/pkg/client"
	"walletcore/pkg/logger"
	"walletcore/pkg/money"
)

// Swapper is the part of the 1Click client used for pricing
type Swapper interface {
	FindToken(ctx context.Context, symbol, chain string) (client.Token, error)
	DryQuote(ctx context.Context, req client.QuoteRequest) (client.Quote, error)
}

// OneClick prices crypto assets in USD with dry 1Click swap quotes into a
// dollar stablecoin. Other fiat currencies are left to the next provider.
type OneClick struct {
	api        Swapper
	stablecoin money.Currency
	recipient  string
	log        *zap.Logger
}

// NewOneClick quotes against USDC. recipient is any address the API
// accepts on the stablecoin's chain; dry quotes never pay it.
func NewOneClick(api Swapper, recipient string) *OneClick {
	return &OneClick{
		api:        api,
		stablecoin: money.USDC,
		recipient:  recipient,
		log:        logger.Named("rates"),
	}
}

func (o *OneClick) Rate(ctx context.Context, from, to money.Currency) (money.ExchangeRate, error) {
	switch {
	case from.IsCrypto() && to == money.USD:
		return o.usdRate(ctx, from)
	case from == money.USD && to.IsCrypto():
		r, err := o.usdRate(ctx, to)
		if err != nil {
			return money.ExchangeRate{}, err
		}
		return r.Inverse(), nil
	default:
		return money.ExchangeRate{}, noRate(from, to)
	}
}

// usdRate quotes one major unit of asset into the stablecoin and reads
// the stablecoin at par
func (o *OneClick) usdRate(ctx context.Context, asset money.Currency) (money.ExchangeRate, error) {
	if asset == o.stablecoin {
		return money.NewRate(asset, money.USD, decimal.NewFromInt(1))
	}

	origin, err := o.api.FindToken(ctx, asset.Code, asset.Chain)
	if err != nil {
		return money.ExchangeRate{}, errors.Wrapf(err, "find %s", asset.Code)
	}
	dest, err := o.api.FindToken(ctx, o.stablecoin.Code, o.stablecoin.Chain)
	if err != nil {
		return money.ExchangeRate{}, errors.Wrapf(err, "find %s", o.stablecoin.Code)
	}

	quote, err := o.api.DryQuote(ctx, client.QuoteRequest{
		OriginAsset:      origin.AssetID,
		DestinationAsset: dest.AssetID,
		Amount:           decimal.New(1, origin.Decimals).String(),
		Recipient:        o.recipient,
		RefundTo:         o.recipient,
	})
	if err != nil {
		return money.ExchangeRate{}, errors.Wrapf(err, "quote %s", asset.Code)
	}

	in, err := decimal.NewFromString(quote.AmountIn)
	if err != nil {
		return money.ExchangeRate{}, errors.Wrap(err, "failed to parse amount in")
	}
	out, err := decimal.NewFromString(quote.AmountOut)
	if err != nil {
		return money.ExchangeRate{}, errors.Wrap(err, "failed to parse amount out")
	}
	if in.IsZero() {
		return money.ExchangeRate{}, errors.New("invalid amount in: 0")
	}

	price := out.DivRound(in, 8)
	o.log.Debug("quoted price",
		zap.String("asset", asset.Code),
		zap.String("usd", price.String()))
	return money.NewRate(asset, money.USD, price)
}
