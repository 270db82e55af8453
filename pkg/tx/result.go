package tx

import (
	"walletcore/pkg/money"
)

// TxResult is what execute hands back: a broadcast hash for on-chain
// transfers, or a backend reference for custodial ones
type TxResult struct {
	Amount    money.Money
	TxID      string
	Reference string
	hashed    bool
}

// Hashed builds the result of an on-chain broadcast
func Hashed(txID string, amount money.Money) TxResult {
	return TxResult{Amount: amount, TxID: txID, hashed: true}
}

// Unhashed builds the result of a custodial operation. reference may be
// empty when the backend returns none.
func Unhashed(reference string, amount money.Money) TxResult {
	return TxResult{Amount: amount, Reference: reference}
}

// IsHashed reports whether the result carries a broadcast hash
func (r TxResult) IsHashed() bool {
	return r.hashed
}

// ID returns the hash for hashed results and the reference otherwise
func (r TxResult) ID() string {
	if r.hashed {
		return r.TxID
	}
	return r.Reference
}
