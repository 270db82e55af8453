package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/money"
)

func withOptions() PendingTx {
	return PendingTx{
		Amount: money.FromMinor(money.BTC, 1000),
	}.WithConfirmations(
		FromOption{Label: "wallet"},
		DescriptionOption{Text: "rent"},
		ToOption{Label: "bc1q..."},
	)
}

func TestWithOptionReplacesInPlace(t *testing.T) {
	ptx := withOptions()
	next := ptx.WithOption(DescriptionOption{Text: "groceries"})

	require.Len(t, next.Confirmations, 3)
	desc, ok := OptionAs[DescriptionOption](next, OptionDescription)
	require.True(t, ok)
	assert.Equal(t, "groceries", desc.Text)
	assert.Equal(t, OptionDescription, next.Confirmations[1].Kind())

	// the original is untouched
	old, _ := OptionAs[DescriptionOption](ptx, OptionDescription)
	assert.Equal(t, "rent", old.Text)
}

func TestWithConfirmationsKeepsOnePerKind(t *testing.T) {
	ptx := PendingTx{}.WithConfirmations(
		MemoOption{Text: "a"},
		MemoOption{Text: "b"},
	)
	require.Len(t, ptx.Confirmations, 1)
	memo, _ := OptionAs[MemoOption](ptx, OptionMemo)
	assert.Equal(t, "b", memo.Text)
}

func TestWithoutOption(t *testing.T) {
	ptx := withOptions()
	next := ptx.WithoutOption(OptionDescription)
	assert.False(t, next.HasOption(OptionDescription))
	assert.Len(t, next.Confirmations, 2)
	assert.True(t, ptx.HasOption(OptionDescription))
}

func TestWithValidityTracksErrorNotice(t *testing.T) {
	minLimit := money.FromMinor(money.BTC, 5000)
	ptx := withOptions()
	ptx.MinLimit = &minLimit

	under := ptx.WithValidity(ValidationUnderMinLimit)
	notice, ok := OptionAs[ErrorNoticeOption](under, OptionErrorNotice)
	require.True(t, ok)
	assert.Equal(t, ValidationUnderMinLimit, notice.Status)
	require.NotNil(t, notice.Limit)
	assert.True(t, notice.Limit.Equal(minLimit))

	cleared := under.WithValidity(ValidationCanExecute)
	assert.False(t, cleared.HasOption(OptionErrorNotice))
	assert.Equal(t, ValidationCanExecute, cleared.ValidationState)
}

func TestWithValiditySkipsNoticeBeforeConfirmations(t *testing.T) {
	ptx := PendingTx{}.WithValidity(ValidationInsufficientFunds)
	assert.Empty(t, ptx.Confirmations)
	assert.Equal(t, ValidationInsufficientFunds, ptx.ValidationState)
}

func TestTotal(t *testing.T) {
	ptx := PendingTx{
		Amount:    money.FromMinor(money.ETH, 100),
		FeeAmount: money.FromMinor(money.ETH, 21),
	}
	assert.True(t, ptx.Total().Equal(money.FromMinor(money.ETH, 121)))

	ptx.Amount = money.FromMinor(money.USDC, 100)
	assert.True(t, ptx.Total().Equal(money.FromMinor(money.USDC, 100)))
}

func TestStateError(t *testing.T) {
	tests := map[ValidationState]error{
		ValidationCanExecute:        nil,
		ValidationUninitialised:     ErrUnexpected,
		ValidationOptionInvalid:     ErrUnexpected,
		ValidationInvoiceExpired:    ErrUnexpected,
		ValidationUnknownError:      ErrUnexpected,
		ValidationHasTxInFlight:     ErrOrderLimitReached,
		ValidationInvalidAmount:     ErrInvalidDestinationAmount,
		ValidationInsufficientFunds: ErrInsufficientBalance,
		ValidationInsufficientGas:   ErrInsufficientBalance,
		ValidationUnderMinLimit:     ErrOrderBelowMin,
		ValidationOverMaxLimit:      ErrOrderAboveMax,
	}
	for state, want := range tests {
		got := StateError(state)
		if want == nil {
			assert.NoError(t, got, state.String())
			continue
		}
		assert.ErrorIs(t, got, want, state.String())
	}
}

func TestDecode(t *testing.T) {
	code, _ := Decode(nil)
	assert.Equal(t, 0, code)

	code, msg := Decode(ErrOrderBelowMin)
	assert.Equal(t, ErrOrderBelowMin.Code, code)
	assert.Equal(t, ErrOrderBelowMin.Message, msg)

	code, _ = Decode(&ExecutionError{Engine: "x", Err: assert.AnError})
	assert.Equal(t, ErrExecutionFailed.Code, code)
}
