package types

// TransferRequest is a parsed transfer command
type TransferRequest struct {
	// Action is one of send, withdraw, sell or deposit
	Action string
	Amount string
	Asset  string
	// Target is an address, a bank id or a fiat currency. It keeps the
	// case it was typed in.
	Target string
	Memo   string
}
