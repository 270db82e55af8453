package custodial

import (
	"time"

	"github.com/shopspring/decimal"

	"walletcore/pkg/money"
	"walletcore/pkg/pricing"
)

// Product is a custodial balance bucket
type Product string

const (
	ProductTrading  Product = "TRADING"
	ProductInterest Product = "SAVINGS"
)

// Action is what a quote or order is for
type Action string

const (
	ActionSell     Action = "SELL"
	ActionSend     Action = "SEND"
	ActionWithdraw Action = "WITHDRAW"
	ActionDeposit  Action = "DEPOSIT"
	ActionSwap     Action = "SWAP"
)

// Quote prices one unit of Asset in Counter, the currency received: fiat
// for a sell, the target asset for a swap. Fee is charged in Counter.
type Quote struct {
	ID        string
	Asset     money.Currency
	Counter   money.Currency
	Rate      decimal.Decimal
	Fee       money.Money
	ExpiresAt time.Time
}

// ExchangeRate returns the quote as an Asset to Counter rate
func (q Quote) ExchangeRate() (money.ExchangeRate, error) {
	return money.NewRate(q.Asset, q.Counter, q.Rate)
}

// Expired reports whether the quote is past its expiry. Quotes without an
// expiry never expire.
func (q Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// TransferQuote is a tiered quote: the price depends on the traded volume
type TransferQuote struct {
	ID         string
	Asset      money.Currency
	Counter    money.Currency
	Tiers      []pricing.Tier
	NetworkFee money.Money
	StaticFee  money.Money
	ExpiresAt  time.Time
}

// Limits bound a transfer. A zero Max means no upper bound.
type Limits struct {
	Min money.Money
	Max money.Money
}

// HasMax reports whether the upper bound is set
func (l Limits) HasMax() bool {
	return !l.Max.IsZero()
}

// In fails unless both bounds are in c
func (l Limits) In(c money.Currency) error {
	if l.Min.Currency() != c {
		return &money.MismatchError{Op: "limits", A: c, B: l.Min.Currency()}
	}
	if l.HasMax() && l.Max.Currency() != c {
		return &money.MismatchError{Op: "limits", A: c, B: l.Max.Currency()}
	}
	return nil
}

// WithdrawFees are the fee and minimum of a custodial crypto withdrawal
type WithdrawFees struct {
	Fee      money.Money
	MinLimit money.Money
}

// OrderState is the backend state of a custodial order
type OrderState string

const (
	OrderPendingConfirmation OrderState = "PENDING_CONFIRMATION"
	OrderPendingExecution    OrderState = "PENDING_EXECUTION"
	OrderFinished            OrderState = "FINISHED"
	OrderCanceled            OrderState = "CANCELED"
	OrderFailed              OrderState = "FAILED"
)

// OrderRequest creates an order selling Amount of Asset into Counter
type OrderRequest struct {
	Asset   money.Currency
	Counter money.Currency
	Action  Action
	Amount  money.Money
	QuoteID string
}

// Order is a custodial order
type Order struct {
	ID        string
	State     OrderState
	Input     money.Money
	Output    money.Money
	CreatedAt time.Time
}

// BankTransferCharge is the state of an open banking payment
type BankTransferCharge struct {
	PaymentID        string
	State            string
	AuthorisationURL string
	Amount           money.Money
}

// Authorised reports whether the bank returned an approval link
func (c BankTransferCharge) Authorised() bool {
	return c.AuthorisationURL != ""
}
