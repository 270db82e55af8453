package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidTierData is returned for malformed tier schedules and for
// volumes the schedule cannot price
var ErrInvalidTierData = errors.New("invalid tier data")

// DefaultScale is the number of decimal places kept by the final division
const DefaultScale int32 = 8

// Tier is one point of a volume/price schedule
type Tier struct {
	Volume decimal.Decimal
	Price  decimal.Decimal
}

// Interpolate evaluates the straight line through (xs[0], ys[0]) and
// (xs[1], ys[1]) at v. v must lie within [xs[0], xs[1]].
func Interpolate(xs, ys []decimal.Decimal, v decimal.Decimal, scale int32) (decimal.Decimal, error) {
	if len(xs) < 2 || len(ys) < 2 {
		return decimal.Zero, fmt.Errorf("%w: need 2 points, got %d", ErrInvalidTierData, min(len(xs), len(ys)))
	}
	x0, x1 := xs[0], xs[1]
	y0, y1 := ys[0], ys[1]

	if v.LessThan(x0) || v.GreaterThan(x1) {
		return decimal.Zero, fmt.Errorf("%w: %s outside [%s, %s]", ErrInvalidTierData, v, x0, x1)
	}
	if x0.Equal(x1) {
		return y0, nil
	}

	// y0 + (v - x0) * (y1 - y0) / (x1 - x0), one rounded division at the end
	numerator := v.Sub(x0).Mul(y1.Sub(y0))
	return y0.Add(numerator.DivRound(x1.Sub(x0), scale)), nil
}

// PriceInterpolator prices a trade volume from a tier schedule. A zero
// tier is always placed in front of the schedule, so volumes below the
// first tier interpolate from (0, 0).
type PriceInterpolator struct {
	tiers []Tier
	scale int32
}

// New builds an interpolator from tiers sorted by ascending volume
func New(tiers []Tier, scale int32) (*PriceInterpolator, error) {
	all := make([]Tier, 0, len(tiers)+1)
	all = append(all, Tier{Volume: decimal.Zero, Price: decimal.Zero})
	all = append(all, tiers...)

	for i := 1; i < len(all); i++ {
		if all[i].Volume.LessThan(all[i-1].Volume) {
			return nil, fmt.Errorf("%w: volume %s after %s", ErrInvalidTierData, all[i].Volume, all[i-1].Volume)
		}
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("%w: empty schedule", ErrInvalidTierData)
	}

	return &PriceInterpolator{tiers: all, scale: scale}, nil
}

// PriceAt returns the price applicable to volume v. Volumes past the last
// tier get the last tier's price.
func (p *PriceInterpolator) PriceAt(v decimal.Decimal) (decimal.Decimal, error) {
	last := p.tiers[len(p.tiers)-1]
	if v.GreaterThan(last.Volume) {
		return last.Price, nil
	}

	for i := 0; i < len(p.tiers)-1; i++ {
		lo, hi := p.tiers[i], p.tiers[i+1]
		if lo.Volume.Equal(hi.Volume) && !v.Equal(lo.Volume) {
			continue
		}
		if v.LessThanOrEqual(hi.Volume) {
			return Interpolate(
				[]decimal.Decimal{lo.Volume, hi.Volume},
				[]decimal.Decimal{lo.Price, hi.Price},
				v,
				p.scale,
			)
		}
	}

	// only negative volumes reach this point
	return decimal.Zero, fmt.Errorf("%w: volume %s below zero", ErrInvalidTierData, v)
}

// Tiers returns a copy of the schedule including the zero tier
func (p *PriceInterpolator) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}
