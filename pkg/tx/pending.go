package tx

import (
	"walletcore/pkg/money"
)

// EngineState is engine private data carried alongside a pending
// transaction. Each engine defines its own concrete type.
type EngineState interface {
	EngineName() string
}

// PendingTx is a transaction under construction. Values are replaced, never
// shared: every With method returns a copy with its own option slice.
type PendingTx struct {
	Amount              money.Money
	TotalBalance        money.Money
	AvailableBalance    money.Money
	FeeAmount           money.Money
	FeeForFullAvailable money.Money
	FeeSelection        FeeSelection
	MinLimit            *money.Money
	MaxLimit            *money.Money
	SelectedFiat        money.Currency
	Confirmations       []Option
	ValidationState     ValidationState
	EngineState         EngineState
}

// Clone returns a copy that shares nothing mutable with ptx
func (ptx PendingTx) Clone() PendingTx {
	out := ptx
	if ptx.Confirmations != nil {
		out.Confirmations = append([]Option(nil), ptx.Confirmations...)
	}
	out.FeeSelection.AvailableLevels = append([]FeeLevel(nil), ptx.FeeSelection.AvailableLevels...)
	if ptx.MinLimit != nil {
		out.MinLimit = ptx.MinLimit.Ptr()
	}
	if ptx.MaxLimit != nil {
		out.MaxLimit = ptx.MaxLimit.Ptr()
	}
	return out
}

// HasOption reports whether an option of kind k is attached
func (ptx PendingTx) HasOption(k OptionKind) bool {
	_, ok := ptx.Option(k)
	return ok
}

// Option returns the option of kind k
func (ptx PendingTx) Option(k OptionKind) (Option, bool) {
	for _, o := range ptx.Confirmations {
		if o.Kind() == k {
			return o, true
		}
	}
	return nil, false
}

// WithOption adds opt, replacing any option of the same kind in place
func (ptx PendingTx) WithOption(opt Option) PendingTx {
	out := ptx.Clone()
	for i, o := range out.Confirmations {
		if o.Kind() == opt.Kind() {
			out.Confirmations[i] = opt
			return out
		}
	}
	out.Confirmations = append(out.Confirmations, opt)
	return out
}

// WithoutOption drops the option of kind k if present
func (ptx PendingTx) WithoutOption(k OptionKind) PendingTx {
	out := ptx.Clone()
	kept := out.Confirmations[:0]
	for _, o := range out.Confirmations {
		if o.Kind() != k {
			kept = append(kept, o)
		}
	}
	out.Confirmations = kept
	return out
}

// WithConfirmations replaces every option. Later options win when two
// share a kind.
func (ptx PendingTx) WithConfirmations(opts ...Option) PendingTx {
	out := ptx.Clone()
	out.Confirmations = nil
	for _, o := range opts {
		out = out.WithOption(o)
	}
	return out
}

// WithValidity sets the validation state and keeps the error notice in
// step with it once confirmations have been built
func (ptx PendingTx) WithValidity(s ValidationState) PendingTx {
	out := ptx.Clone()
	out.ValidationState = s
	if len(out.Confirmations) == 0 {
		return out
	}

	if s == ValidationCanExecute || s == ValidationUninitialised {
		return out.WithoutOption(OptionErrorNotice)
	}
	notice := ErrorNoticeOption{Status: s}
	if s == ValidationUnderMinLimit && out.MinLimit != nil {
		notice.Limit = out.MinLimit.Ptr()
	}
	return out.WithOption(notice)
}

// WithState replaces the engine state
func (ptx PendingTx) WithState(s EngineState) PendingTx {
	out := ptx.Clone()
	out.EngineState = s
	return out
}

// StateAs returns the engine state as type T
func StateAs[T EngineState](ptx PendingTx) (T, bool) {
	s, ok := ptx.EngineState.(T)
	return s, ok
}

// Total is the amount plus the fee when both share a currency, otherwise
// just the amount
func (ptx PendingTx) Total() money.Money {
	if ptx.Amount.SameCurrency(ptx.FeeAmount) {
		return ptx.Amount.Add(ptx.FeeAmount)
	}
	return ptx.Amount
}
