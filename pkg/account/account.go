package account

import (
	"context"
	"fmt"

	"walletcore/pkg/money"
)

// SourceKind is the kind of holding funds leave from
type SourceKind int

const (
	SourceSelfCustody SourceKind = iota + 1
	SourceTrading
	SourceInterest
	SourceFiat
	SourceBank
)

func (k SourceKind) String() string {
	switch k {
	case SourceSelfCustody:
		return "self-custody"
	case SourceTrading:
		return "trading"
	case SourceInterest:
		return "interest"
	case SourceFiat:
		return "fiat"
	case SourceBank:
		return "bank"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// TargetKind is the kind of destination funds go to
type TargetKind int

const (
	TargetAddress TargetKind = iota + 1
	TargetCryptoAccount
	TargetInterestAccount
	TargetFiatAccount
	TargetBank
)

func (k TargetKind) String() string {
	switch k {
	case TargetAddress:
		return "address"
	case TargetCryptoAccount:
		return "crypto account"
	case TargetInterestAccount:
		return "interest account"
	case TargetFiatAccount:
		return "fiat account"
	case TargetBank:
		return "bank"
	default:
		return fmt.Sprintf("target(%d)", int(k))
	}
}

// BalanceProvider reports the balances of one holding
type BalanceProvider interface {
	// Balance is the total held
	Balance(ctx context.Context) (money.Money, error)
	// ActionableBalance is what can be spent right now
	ActionableBalance(ctx context.Context) (money.Money, error)
}

// Source is a holding a transaction can spend from
type Source interface {
	BalanceProvider
	Label() string
	Kind() SourceKind
	Currency() money.Currency
	// ReceiveAddress is the deposit address, or the bank id for bank
	// accounts
	ReceiveAddress(ctx context.Context) (string, error)
}

// Target is where a transaction sends funds
type Target interface {
	Label() string
	TargetKind() TargetKind
	Currency() money.Currency
}

// AccountTarget is a target that is itself an account whose receive
// address must be resolved before sending
type AccountTarget interface {
	Target
	ReceiveAddress(ctx context.Context) (string, error)
}
