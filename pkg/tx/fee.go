package tx

import (
	"fmt"
	"strings"

	"walletcore/pkg/money"
)

// FeeLevel is a named fee priority
type FeeLevel int

const (
	FeeLevelNone FeeLevel = iota
	FeeLevelRegular
	FeeLevelPriority
	FeeLevelCustom
)

func (l FeeLevel) String() string {
	switch l {
	case FeeLevelNone:
		return "None"
	case FeeLevelRegular:
		return "Regular"
	case FeeLevelPriority:
		return "Priority"
	case FeeLevelCustom:
		return "Custom"
	default:
		return fmt.Sprintf("FeeLevel(%d)", int(l))
	}
}

// ParseFeeLevel reads a level name, case-insensitively
func ParseFeeLevel(s string) (FeeLevel, error) {
	switch strings.ToLower(s) {
	case "none":
		return FeeLevelNone, nil
	case "regular":
		return FeeLevelRegular, nil
	case "priority":
		return FeeLevelPriority, nil
	case "custom":
		return FeeLevelCustom, nil
	}
	return FeeLevelNone, fmt.Errorf("unknown fee level %q", s)
}

// NoCustomFee marks an unset custom fee amount
const NoCustomFee int64 = -1

// MinimumCustomFee is the lowest custom fee a user may enter
const MinimumCustomFee int64 = 1

// FeeState classifies the fee for display and validation
type FeeState int

const (
	FeeStateUnknown FeeState = iota
	FeeDetails
	FeeTooHigh
	FeeUnderMinLimit
	FeeUnderRecommended
	FeeOverRecommended
	ValidCustomFee
)

func (s FeeState) String() string {
	switch s {
	case FeeDetails:
		return "FeeDetails"
	case FeeTooHigh:
		return "FeeTooHigh"
	case FeeUnderMinLimit:
		return "FeeUnderMinLimit"
	case FeeUnderRecommended:
		return "FeeUnderRecommended"
	case FeeOverRecommended:
		return "FeeOverRecommended"
	case ValidCustomFee:
		return "ValidCustomFee"
	default:
		return "Unknown"
	}
}

// FeeLimits are the backend's recommended custom fee bounds
type FeeLimits struct {
	Min int64
	Max int64
}

// FeeSelection is the fee level choice carried by a pending transaction
type FeeSelection struct {
	SelectedLevel   FeeLevel
	AvailableLevels []FeeLevel
	CustomAmount    int64
	// Asset pays the fee, nil when the fee is paid in the sent asset
	Asset        *money.Currency
	State        FeeState
	CustomLimits *FeeLimits
}

// NoFees is the selection of engines that never charge a network fee
func NoFees() FeeSelection {
	return FeeSelection{
		SelectedLevel:   FeeLevelNone,
		AvailableLevels: []FeeLevel{FeeLevelNone},
		CustomAmount:    NoCustomFee,
	}
}

// NewFeeSelection selects the first of levels
func NewFeeSelection(levels ...FeeLevel) FeeSelection {
	if len(levels) == 0 {
		return NoFees()
	}
	avail := make([]FeeLevel, len(levels))
	copy(avail, levels)
	return FeeSelection{
		SelectedLevel:   avail[0],
		AvailableLevels: avail,
		CustomAmount:    NoCustomFee,
	}
}

// Supports reports whether level is one of the available levels
func (f FeeSelection) Supports(level FeeLevel) bool {
	for _, l := range f.AvailableLevels {
		if l == level {
			return true
		}
	}
	return false
}

// HasChanged reports whether moving to (level, custom) alters the fee
func (f FeeSelection) HasChanged(level FeeLevel, custom int64) bool {
	if level != f.SelectedLevel {
		return true
	}
	return level == FeeLevelCustom && custom != f.CustomAmount
}

// Transition applies the fee level policy. Identity is a no-op, a level
// outside the available set fails, and leaving Custom drops the custom
// amount.
func (f FeeSelection) Transition(level FeeLevel, custom int64) (FeeSelection, error) {
	if !f.Supports(level) {
		return f, fmt.Errorf("%w: %s -> %s", ErrInvalidFeeLevelTransition, f.SelectedLevel, level)
	}
	if !f.HasChanged(level, custom) {
		return f, nil
	}

	next := f
	next.AvailableLevels = append([]FeeLevel(nil), f.AvailableLevels...)
	next.SelectedLevel = level
	if level == FeeLevelCustom {
		next.CustomAmount = custom
	} else {
		next.CustomAmount = NoCustomFee
	}
	return next, nil
}

// CustomFeeState classifies a custom fee against the recommended limits.
// An unset amount (NoCustomFee) is under the minimum.
func CustomFeeState(custom int64, limits *FeeLimits) FeeState {
	switch {
	case custom < MinimumCustomFee:
		return FeeUnderMinLimit
	case limits != nil && custom <= limits.Min:
		return FeeUnderRecommended
	case limits != nil && custom >= limits.Max:
		return FeeOverRecommended
	default:
		return ValidCustomFee
	}
}
