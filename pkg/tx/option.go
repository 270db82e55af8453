package tx

import (
	"time"

	"walletcore/pkg/money"
)

// OptionKind identifies a confirmation option. A pending transaction holds
// at most one option per kind.
type OptionKind int

const (
	OptionDescription OptionKind = iota + 1
	OptionMemo
	OptionFeeSelection
	OptionErrorNotice
	OptionNetworkFee
	OptionAgreementInterestTerms
	OptionAgreementInterestTransfer
	OptionInvoiceCountdown
	OptionLargeTransactionWarning
	OptionFrom
	OptionTo
	OptionTotal
	OptionFeedTotal
	OptionExchangePrice
	OptionFiatFee
	OptionEstimatedCompletion
	OptionReceiveAmount
)

var optionNames = map[OptionKind]string{
	OptionDescription:               "DESCRIPTION",
	OptionMemo:                      "MEMO",
	OptionFeeSelection:              "FEE_SELECTION",
	OptionErrorNotice:               "ERROR_NOTICE",
	OptionNetworkFee:                "NETWORK_FEE",
	OptionAgreementInterestTerms:    "AGREEMENT_INTEREST_T_AND_C",
	OptionAgreementInterestTransfer: "AGREEMENT_INTEREST_TRANSFER",
	OptionInvoiceCountdown:          "INVOICE_COUNTDOWN",
	OptionLargeTransactionWarning:   "LARGE_TRANSACTION_WARNING",
	OptionFrom:                      "FROM",
	OptionTo:                        "TO",
	OptionTotal:                     "TOTAL",
	OptionFeedTotal:                 "FEED_TOTAL",
	OptionExchangePrice:             "EXCHANGE_PRICE",
	OptionFiatFee:                   "FIAT_FEE",
	OptionEstimatedCompletion:       "ESTIMATED_COMPLETION",
	OptionReceiveAmount:             "RECEIVE_AMOUNT",
}

func (k OptionKind) String() string {
	if n, ok := optionNames[k]; ok {
		return n
	}
	return "UNKNOWN_OPTION"
}

// Option is one confirmation item attached to a pending transaction
type Option interface {
	Kind() OptionKind
}

// DescriptionOption is a free text note stored with custodial transfers
type DescriptionOption struct {
	Text string
}

func (DescriptionOption) Kind() OptionKind { return OptionDescription }

// MemoOption is an on-chain memo or destination tag
type MemoOption struct {
	Text     string
	Required bool
}

func (MemoOption) Kind() OptionKind { return OptionMemo }

// FeeSelectionOption lets the user change the fee level
type FeeSelectionOption struct {
	Selection FeeSelection
	FeeAmount money.Money
	// FiatFee is FeeAmount in the user's fiat when a rate was known
	FiatFee *money.Money
}

func (FeeSelectionOption) Kind() OptionKind { return OptionFeeSelection }

// ErrorNoticeOption surfaces the current validation failure
type ErrorNoticeOption struct {
	Status ValidationState
	Limit  *money.Money
}

func (ErrorNoticeOption) Kind() OptionKind { return OptionErrorNotice }

type NetworkFeeOption struct {
	Fee     money.Money
	FiatFee *money.Money
}

func (NetworkFeeOption) Kind() OptionKind { return OptionNetworkFee }

// InterestTermsOption is the interest account terms and conditions checkbox
type InterestTermsOption struct {
	Accepted bool
}

func (InterestTermsOption) Kind() OptionKind { return OptionAgreementInterestTerms }

// InterestTransferOption is the checkbox acknowledging the lock-up of Amount
type InterestTransferOption struct {
	Accepted bool
	Amount   money.Money
}

func (InterestTransferOption) Kind() OptionKind { return OptionAgreementInterestTransfer }

type InvoiceCountdownOption struct {
	ExpiresAt time.Time
}

func (InvoiceCountdownOption) Kind() OptionKind { return OptionInvoiceCountdown }

type LargeTransactionWarningOption struct {
	Acknowledged bool
}

func (LargeTransactionWarningOption) Kind() OptionKind { return OptionLargeTransactionWarning }

type FromOption struct {
	Label string
}

func (FromOption) Kind() OptionKind { return OptionFrom }

type ToOption struct {
	Label string
}

func (ToOption) Kind() OptionKind { return OptionTo }

// TotalOption is the amount the user pays, with its fiat value if known
type TotalOption struct {
	Amount money.Money
	Fiat   *money.Money
}

func (TotalOption) Kind() OptionKind { return OptionTotal }

// FeedTotalOption breaks the total down into amount and fee
type FeedTotalOption struct {
	Amount     money.Money
	Fee        money.Money
	FiatAmount *money.Money
	FiatFee    *money.Money
}

func (FeedTotalOption) Kind() OptionKind { return OptionFeedTotal }

// ExchangePriceOption is the price of one unit of the sold asset
type ExchangePriceOption struct {
	Price money.Money
}

func (ExchangePriceOption) Kind() OptionKind { return OptionExchangePrice }

type FiatFeeOption struct {
	Fee money.Money
}

func (FiatFeeOption) Kind() OptionKind { return OptionFiatFee }

type EstimatedCompletionOption struct {
	Text string
}

func (EstimatedCompletionOption) Kind() OptionKind { return OptionEstimatedCompletion }

// ReceiveAmountOption is what the target receives when it is in another
// asset
type ReceiveAmountOption struct {
	Amount money.Money
	Fiat   *money.Money
}

func (ReceiveAmountOption) Kind() OptionKind { return OptionReceiveAmount }

// OptionAs returns the option of kind k as type T
func OptionAs[T Option](ptx PendingTx, k OptionKind) (T, bool) {
	var zero T
	opt, ok := ptx.Option(k)
	if !ok {
		return zero, false
	}
	typed, ok := opt.(T)
	return typed, ok
}
