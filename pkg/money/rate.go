package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// rateScale bounds the precision of an inverted rate
const rateScale = 18

// ExchangeRate is the price of one major unit of From expressed in To
type ExchangeRate struct {
	From Currency
	To   Currency
	Rate decimal.Decimal
}

// NewRate builds a rate, rejecting non-positive values
func NewRate(from, to Currency, rate decimal.Decimal) (ExchangeRate, error) {
	if !rate.IsPositive() {
		return ExchangeRate{}, fmt.Errorf("invalid %s/%s rate %s", from.Code, to.Code, rate)
	}
	return ExchangeRate{From: from, To: to, Rate: rate}, nil
}

// Convert turns an amount of From into To, rounding half up to the
// precision of To
func (r ExchangeRate) Convert(m Money) (Money, error) {
	if m.currency != r.From {
		return Money{}, &MismatchError{Op: "convert", A: m.currency, B: r.From}
	}
	return FromMajor(r.To, m.Major().Mul(r.Rate)), nil
}

// ConvertBack turns an amount of To into From. The division keeps the
// precision of From and rounds half up.
func (r ExchangeRate) ConvertBack(m Money) (Money, error) {
	if m.currency != r.To {
		return Money{}, &MismatchError{Op: "convert", A: m.currency, B: r.To}
	}
	if r.Rate.IsZero() {
		return Money{}, fmt.Errorf("zero %s/%s rate", r.From.Code, r.To.Code)
	}
	return FromMajor(r.From, m.Major().DivRound(r.Rate, r.From.Decimals)), nil
}

// ConvertAny converts m in whichever direction the rate allows and
// returns values already in the target currency untouched
func (r ExchangeRate) ConvertAny(m Money, target Currency) (Money, error) {
	switch {
	case m.currency == target:
		return m, nil
	case m.currency == r.From && target == r.To:
		return r.Convert(m)
	case m.currency == r.To && target == r.From:
		return r.ConvertBack(m)
	default:
		return Money{}, fmt.Errorf("rate %s cannot convert %s to %s", r, m.currency.Code, target.Code)
	}
}

// Inverse returns the rate from To to From
func (r ExchangeRate) Inverse() ExchangeRate {
	return ExchangeRate{
		From: r.To,
		To:   r.From,
		Rate: decimal.NewFromInt(1).DivRound(r.Rate, rateScale),
	}
}

// Price returns the value of one unit of From, in To
func (r ExchangeRate) Price() Money {
	return FromMajor(r.To, r.Rate)
}

func (r ExchangeRate) String() string {
	return fmt.Sprintf("%s-%s@%s", r.From.Code, r.To.Code, r.Rate.String())
}
