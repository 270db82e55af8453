package tx

import (
	"errors"
	"fmt"

	"walletcore/pkg/money"
)

// ErrPrecondition is matched by every *PreconditionError. These are caller
// bugs, not user input problems.
var ErrPrecondition = errors.New("precondition violated")

// PreconditionError is a contract violation by the caller
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition violated: " + e.Reason
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

var (
	ErrInvalidFeeLevelTransition = &PreconditionError{Reason: "invalid fee level transition"}
	ErrUnsupportedOption         = &PreconditionError{Reason: "unsupported confirmation option"}
	ErrSecondPasswordRequired    = &PreconditionError{Reason: "second password required"}
	ErrFiatNotSupported          = &PreconditionError{Reason: "engine does not accept fiat amounts"}
	ErrCurrencyMismatch          = &PreconditionError{Reason: "currency mismatch"}
	ErrNotInitialised            = &PreconditionError{Reason: "pending transaction not initialised"}
)

// ErrInsufficientFunds is returned eagerly by engines that check the
// balance while the amount is entered
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrUnsupportedRoute is matched by every *UnsupportedRouteError
var ErrUnsupportedRoute = errors.New("unsupported route")

// UnsupportedRouteError names the source and target kinds no engine serves
type UnsupportedRouteError struct {
	Source string
	Target string
	Action string
}

func (e *UnsupportedRouteError) Error() string {
	return fmt.Sprintf("unsupported route: %s -> %s (action %s)", e.Source, e.Target, e.Action)
}

func (e *UnsupportedRouteError) Is(target error) bool {
	return target == ErrUnsupportedRoute
}

// TransactionError is a coded failure returned by Execute
type TransactionError struct {
	Code    int
	Message string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Execute failures (30000+)
var (
	ErrUnexpected               = &TransactionError{Code: 30001, Message: "unexpected transaction state"}
	ErrOrderLimitReached        = &TransactionError{Code: 30002, Message: "a previous transaction is still in flight"}
	ErrInvalidDestinationAmount = &TransactionError{Code: 30003, Message: "invalid amount"}
	ErrInsufficientBalance      = &TransactionError{Code: 30004, Message: "insufficient balance"}
	ErrOrderBelowMin            = &TransactionError{Code: 30005, Message: "amount below minimum"}
	ErrOrderAboveMax            = &TransactionError{Code: 30006, Message: "amount above maximum"}
	ErrExecutionFailed          = &TransactionError{Code: 30007, Message: "execution failed"}
)

// Decode returns the code and message of err, 0 for nil and
// ErrUnexpected's code for anything uncoded
func Decode(err error) (int, string) {
	if err == nil {
		return 0, "success"
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Code, te.Message
	}
	return ErrUnexpected.Code, err.Error()
}

// ExecutionError wraps a collaborator failure during execute. It matches
// ErrExecutionFailed and unwraps to the cause.
type ExecutionError struct {
	Engine string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, ErrExecutionFailed.Message, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecutionFailed, e.Err}
}

// ApprovalRequiredError is returned alongside a successful result when the
// user still has to authorise the payment with their bank
type ApprovalRequiredError struct {
	PaymentID        string
	AuthorisationURL string
	Amount           money.Money
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("payment %s for %s needs approval at %s", e.PaymentID, e.Amount.Display(), e.AuthorisationURL)
}

// StateError maps a validation state to the error Execute reports for it.
// CAN_EXECUTE maps to nil.
func StateError(s ValidationState) error {
	switch s {
	case ValidationCanExecute:
		return nil
	case ValidationHasTxInFlight:
		return ErrOrderLimitReached
	case ValidationInvalidAmount:
		return ErrInvalidDestinationAmount
	case ValidationInsufficientFunds, ValidationInsufficientGas:
		return ErrInsufficientBalance
	case ValidationUnderMinLimit:
		return ErrOrderBelowMin
	case ValidationOverMaxLimit:
		return ErrOrderAboveMax
	default:
		// UNINITIALISED, OPTION_INVALID, INVOICE_EXPIRED, UNKNOWN_ERROR
		return ErrUnexpected
	}
}
