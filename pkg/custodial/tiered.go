package custodial

import (
	"context"
	"fmt"

	"walletcore/pkg/money"
	"walletcore/pkg/pricing"
)

// TransferQuoter fetches tiered quotes
type TransferQuoter interface {
	GetTransferQuote(ctx context.Context, asset, counter money.Currency, action Action) (TransferQuote, error)
}

// TieredQuoteSource turns tiered transfer quotes into flat quotes for a
// given volume
type TieredQuoteSource struct {
	quoter TransferQuoter
	scale  int32
}

// NewTieredQuoteSource prices volumes from quoter's tier schedules
func NewTieredQuoteSource(quoter TransferQuoter) *TieredQuoteSource {
	return &TieredQuoteSource{quoter: quoter, scale: pricing.DefaultScale}
}

// GetQuote prices amount at the schedule price for its volume. Volumes
// at or below the first tier take the first tier's price, larger ones are
// interpolated. A counter amount is turned into a volume at the first tier's
// price. The network and static fees are added into the quote fee.
func (s *TieredQuoteSource) GetQuote(ctx context.Context, asset, counter money.Currency, action Action, amount money.Money) (Quote, error) {
	if amount.Currency() != asset && amount.Currency() != counter {
		return Quote{}, fmt.Errorf("tiered quote: amount in %s, want %s or %s", amount.Currency().Code, asset.Code, counter.Code)
	}

	tq, err := s.quoter.GetTransferQuote(ctx, asset, counter, action)
	if err != nil {
		return Quote{}, err
	}
	if len(tq.Tiers) == 0 {
		return Quote{}, fmt.Errorf("%w: quote %s has no tiers", pricing.ErrInvalidTierData, tq.ID)
	}

	interp, err := pricing.New(tq.Tiers, s.scale)
	if err != nil {
		return Quote{}, err
	}

	first := tq.Tiers[0]
	volume := amount.Major()
	if amount.Currency() == counter {
		if !first.Price.IsPositive() {
			return Quote{}, fmt.Errorf("%w: first tier price %s", pricing.ErrInvalidTierData, first.Price)
		}
		volume = volume.DivRound(first.Price, asset.Decimals)
	}

	price := first.Price
	if volume.GreaterThan(first.Volume) {
		if price, err = interp.PriceAt(volume); err != nil {
			return Quote{}, err
		}
	}

	fee := money.Zero(counter)
	for _, f := range []money.Money{tq.NetworkFee, tq.StaticFee} {
		if f.Currency() == counter {
			fee = fee.Add(f)
		}
	}

	return Quote{
		ID:        tq.ID,
		Asset:     asset,
		Counter:   counter,
		Rate:      price,
		Fee:       fee,
		ExpiresAt: tq.ExpiresAt,
	}, nil
}
