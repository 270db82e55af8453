package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeTransitionLaw(t *testing.T) {
	standard := []FeeLevel{FeeLevelRegular, FeeLevelPriority, FeeLevelCustom}
	all := []FeeLevel{FeeLevelNone, FeeLevelRegular, FeeLevelPriority, FeeLevelCustom}

	for _, from := range standard {
		for _, to := range all {
			sel := NewFeeSelection(standard...)
			sel.SelectedLevel = from
			if from == FeeLevelCustom {
				sel.CustomAmount = 20
			}

			next, err := sel.Transition(to, 30)
			if to == FeeLevelNone {
				assert.ErrorIs(t, err, ErrInvalidFeeLevelTransition, "%s -> %s", from, to)
				assert.ErrorIs(t, err, ErrPrecondition)
				continue
			}
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, to, next.SelectedLevel)
			if to == FeeLevelCustom {
				assert.Equal(t, int64(30), next.CustomAmount)
			} else {
				assert.Equal(t, NoCustomFee, next.CustomAmount, "leaving custom drops the amount")
			}
		}
	}
}

func TestFeeIdentityIsNoop(t *testing.T) {
	for _, levels := range [][]FeeLevel{
		{FeeLevelNone},
		{FeeLevelRegular},
		{FeeLevelRegular, FeeLevelPriority, FeeLevelCustom},
	} {
		sel := NewFeeSelection(levels...)
		assert.False(t, sel.HasChanged(sel.SelectedLevel, 99))
		next, err := sel.Transition(sel.SelectedLevel, 99)
		require.NoError(t, err)
		assert.Equal(t, sel.SelectedLevel, next.SelectedLevel)
		assert.Equal(t, sel.CustomAmount, next.CustomAmount)
	}
}

func TestRestrictedSelectionsRejectEveryMove(t *testing.T) {
	none := NoFees()
	for _, to := range []FeeLevel{FeeLevelRegular, FeeLevelPriority, FeeLevelCustom} {
		_, err := none.Transition(to, 10)
		assert.ErrorIs(t, err, ErrInvalidFeeLevelTransition)
	}

	regular := NewFeeSelection(FeeLevelRegular)
	for _, to := range []FeeLevel{FeeLevelNone, FeeLevelPriority, FeeLevelCustom} {
		_, err := regular.Transition(to, 10)
		assert.ErrorIs(t, err, ErrInvalidFeeLevelTransition)
	}
}

func TestCustomFeeChangeCountsAsChange(t *testing.T) {
	sel := NewFeeSelection(FeeLevelRegular, FeeLevelCustom)
	sel.SelectedLevel = FeeLevelCustom
	sel.CustomAmount = 5

	assert.True(t, sel.HasChanged(FeeLevelCustom, 6))
	next, err := sel.Transition(FeeLevelCustom, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), next.CustomAmount)
}

func TestTransitionDoesNotAliasLevels(t *testing.T) {
	sel := NewFeeSelection(FeeLevelRegular, FeeLevelPriority)
	next, err := sel.Transition(FeeLevelPriority, NoCustomFee)
	require.NoError(t, err)

	next.AvailableLevels[0] = FeeLevelCustom
	assert.Equal(t, FeeLevelRegular, sel.AvailableLevels[0])
}

func TestCustomFeeState(t *testing.T) {
	limits := &FeeLimits{Min: 10, Max: 100}

	assert.Equal(t, FeeUnderMinLimit, CustomFeeState(NoCustomFee, limits))
	assert.Equal(t, FeeUnderMinLimit, CustomFeeState(0, limits))
	assert.Equal(t, FeeUnderRecommended, CustomFeeState(10, limits))
	assert.Equal(t, FeeOverRecommended, CustomFeeState(100, limits))
	assert.Equal(t, ValidCustomFee, CustomFeeState(50, limits))
	assert.Equal(t, ValidCustomFee, CustomFeeState(5, nil))
}

func TestParseFeeLevel(t *testing.T) {
	l, err := ParseFeeLevel("Priority")
	require.NoError(t, err)
	assert.Equal(t, FeeLevelPriority, l)

	_, err = ParseFeeLevel("fast")
	assert.Error(t, err)
}
