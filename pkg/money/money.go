package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is matched by every *MismatchError
var ErrCurrencyMismatch = errors.New("currency mismatch")

// MismatchError reports arithmetic or comparison across two currencies
type MismatchError struct {
	Op   string
	A, B Currency
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("money: %s between %s and %s", e.Op, e.A.Code, e.B.Code)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrCurrencyMismatch
}

// Money is an amount of one currency held as an integer count of minor
// units. The zero value has no currency and is only useful as a
// placeholder.
type Money struct {
	currency Currency
	minor    decimal.Decimal
}

// Zero returns zero of c
func Zero(c Currency) Money {
	return Money{currency: c, minor: decimal.Zero}
}

// FromMinor builds a value from an integer count of minor units
func FromMinor(c Currency, minor int64) Money {
	return Money{currency: c, minor: decimal.NewFromInt(minor)}
}

// FromMinorDecimal builds a value from a minor unit count, dropping any
// fractional part
func FromMinorDecimal(c Currency, minor decimal.Decimal) Money {
	return Money{currency: c, minor: minor.Truncate(0)}
}

// FromMajor builds a value from a major unit amount, rounding half up to
// the precision of c
func FromMajor(c Currency, major decimal.Decimal) Money {
	return Money{currency: c, minor: major.Shift(c.Decimals).Round(0)}
}

// Parse reads a major unit amount such as "0.005"
func Parse(c Currency, s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromMajor(c, d), nil
}

// Currency returns the currency of m
func (m Money) Currency() Currency {
	return m.currency
}

// Minor returns the amount in minor units
func (m Money) Minor() decimal.Decimal {
	return m.minor
}

// Major returns the amount in major units
func (m Money) Major() decimal.Decimal {
	return m.minor.Shift(-m.currency.Decimals)
}

func (m Money) IsZero() bool     { return m.minor.IsZero() }
func (m Money) IsPositive() bool { return m.minor.IsPositive() }
func (m Money) IsNegative() bool { return m.minor.IsNegative() }
func (m Money) IsCrypto() bool   { return m.currency.IsCrypto() }
func (m Money) IsFiat() bool     { return m.currency.IsFiat() }

// SameCurrency reports whether m and o can be combined
func (m Money) SameCurrency(o Money) bool {
	return m.currency == o.currency
}

func (m Money) mustMatch(op string, o Money) {
	if m.currency != o.currency {
		panic(&MismatchError{Op: op, A: m.currency, B: o.currency})
	}
}

// Add returns m+o. Both values must share a currency.
func (m Money) Add(o Money) Money {
	m.mustMatch("add", o)
	return Money{currency: m.currency, minor: m.minor.Add(o.minor)}
}

// Sub returns m-o. Both values must share a currency.
func (m Money) Sub(o Money) Money {
	m.mustMatch("sub", o)
	return Money{currency: m.currency, minor: m.minor.Sub(o.minor)}
}

// Cmp compares m and o like decimal.Cmp. Both values must share a currency.
func (m Money) Cmp(o Money) int {
	m.mustMatch("compare", o)
	return m.minor.Cmp(o.minor)
}

// Compare is Cmp for callers that cannot guarantee a shared currency
func (m Money) Compare(o Money) (int, error) {
	if m.currency != o.currency {
		return 0, &MismatchError{Op: "compare", A: m.currency, B: o.currency}
	}
	return m.minor.Cmp(o.minor), nil
}

func (m Money) LessThan(o Money) bool       { return m.Cmp(o) < 0 }
func (m Money) GreaterThan(o Money) bool    { return m.Cmp(o) > 0 }
func (m Money) LessOrEqual(o Money) bool    { return m.Cmp(o) <= 0 }
func (m Money) GreaterOrEqual(o Money) bool { return m.Cmp(o) >= 0 }

// Equal reports same currency and same amount
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.minor.Equal(o.minor)
}

// Max returns the larger of a and b
func Max(a, b Money) Money {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b
func Min(a, b Money) Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// String formats the value with the full precision of its currency,
// e.g. "0.00500000 BTC"
func (m Money) String() string {
	return m.Major().StringFixed(m.currency.Decimals) + " " + m.currency.Code
}

// Display formats the value without trailing zeros, e.g. "0.005 BTC"
func (m Money) Display() string {
	return m.Major().String() + " " + m.currency.Code
}

// Ptr returns a pointer to a copy of m, for optional fields
func (m Money) Ptr() *Money {
	return &m
}
