package tx

// ValidationState is the outcome of checking a pending transaction. User
// input problems are reported here and never as errors.
type ValidationState int

const (
	ValidationUninitialised ValidationState = iota
	ValidationCanExecute
	ValidationUnderMinLimit
	ValidationOverMaxLimit
	ValidationInsufficientFunds
	ValidationInsufficientGas
	ValidationInvalidAmount
	ValidationHasTxInFlight
	ValidationOptionInvalid
	ValidationInvoiceExpired
	ValidationUnknownError
)

var validationNames = map[ValidationState]string{
	ValidationUninitialised:     "UNINITIALISED",
	ValidationCanExecute:        "CAN_EXECUTE",
	ValidationUnderMinLimit:     "UNDER_MIN_LIMIT",
	ValidationOverMaxLimit:      "OVER_MAX_LIMIT",
	ValidationInsufficientFunds: "INSUFFICIENT_FUNDS",
	ValidationInsufficientGas:   "INSUFFICIENT_GAS",
	ValidationInvalidAmount:     "INVALID_AMOUNT",
	ValidationHasTxInFlight:     "HAS_TX_IN_FLIGHT",
	ValidationOptionInvalid:     "OPTION_INVALID",
	ValidationInvoiceExpired:    "INVOICE_EXPIRED",
	ValidationUnknownError:      "UNKNOWN_ERROR",
}

func (s ValidationState) String() string {
	if n, ok := validationNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Message is a short user facing description of the state
func (s ValidationState) Message() string {
	switch s {
	case ValidationCanExecute:
		return "ready to send"
	case ValidationUnderMinLimit:
		return "amount is below the minimum"
	case ValidationOverMaxLimit:
		return "amount is above the maximum"
	case ValidationInsufficientFunds:
		return "not enough funds"
	case ValidationInsufficientGas:
		return "not enough funds to pay the network fee"
	case ValidationInvalidAmount:
		return "enter a valid amount"
	case ValidationHasTxInFlight:
		return "a previous transaction has not confirmed yet"
	case ValidationOptionInvalid:
		return "review the confirmation options"
	case ValidationInvoiceExpired:
		return "the quote has expired"
	case ValidationUninitialised:
		return "enter an amount"
	default:
		return "something went wrong"
	}
}
