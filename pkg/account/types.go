package account

import (
	"context"
	"sync"

	"walletcore/pkg/money"
)

// Static is an in-memory account with fixed balances. The CLI builds these
// from config and chain lookups, tests use them directly.
type Static struct {
	Name       string
	SourceKind SourceKind
	Asset      money.Currency
	Address    string

	mu         sync.RWMutex
	total      money.Money
	actionable money.Money
}

// NewStatic builds an account with total and actionable balances
func NewStatic(name string, kind SourceKind, asset money.Currency, address string, total, actionable money.Money) *Static {
	return &Static{
		Name:       name,
		SourceKind: kind,
		Asset:      asset,
		Address:    address,
		total:      total,
		actionable: actionable,
	}
}

func (a *Static) Label() string            { return a.Name }
func (a *Static) Kind() SourceKind         { return a.SourceKind }
func (a *Static) Currency() money.Currency { return a.Asset }

func (a *Static) Balance(context.Context) (money.Money, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total, nil
}

func (a *Static) ActionableBalance(context.Context) (money.Money, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.actionable, nil
}

func (a *Static) ReceiveAddress(context.Context) (string, error) {
	return a.Address, nil
}

// SetBalances replaces both balances
func (a *Static) SetBalances(total, actionable money.Money) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = total
	a.actionable = actionable
}

// Live is a source whose balances come from a provider, typically a chain
// signer
type Live struct {
	Name       string
	SourceKind SourceKind
	Asset      money.Currency
	Address    string
	Balances   BalanceProvider
}

func (a *Live) Label() string            { return a.Name }
func (a *Live) Kind() SourceKind         { return a.SourceKind }
func (a *Live) Currency() money.Currency { return a.Asset }

func (a *Live) Balance(ctx context.Context) (money.Money, error) {
	return a.Balances.Balance(ctx)
}

func (a *Live) ActionableBalance(ctx context.Context) (money.Money, error) {
	return a.Balances.ActionableBalance(ctx)
}

func (a *Live) ReceiveAddress(context.Context) (string, error) {
	return a.Address, nil
}

// CryptoAddress is a raw on-chain address target
type CryptoAddress struct {
	Asset   money.Currency
	Address string
	Name    string
	Memo    string
}

func (t CryptoAddress) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Address
}

func (t CryptoAddress) TargetKind() TargetKind   { return TargetAddress }
func (t CryptoAddress) Currency() money.Currency { return t.Asset }

// AccountRef is another account used as a target. Its kind decides how
// the factory routes to it.
type AccountRef struct {
	Kind    TargetKind
	Account Source
}

func (t AccountRef) Label() string            { return t.Account.Label() }
func (t AccountRef) TargetKind() TargetKind   { return t.Kind }
func (t AccountRef) Currency() money.Currency { return t.Account.Currency() }

func (t AccountRef) ReceiveAddress(ctx context.Context) (string, error) {
	return t.Account.ReceiveAddress(ctx)
}

// LinkedBank is a bank account linked for fiat transfers
type LinkedBank struct {
	ID   string
	Name string
	Fiat money.Currency
}

func (b LinkedBank) Label() string            { return b.Name }
func (b LinkedBank) TargetKind() TargetKind   { return TargetBank }
func (b LinkedBank) Currency() money.Currency { return b.Fiat }

func (b LinkedBank) ReceiveAddress(context.Context) (string, error) {
	return b.ID, nil
}

// BankSource returns the bank as a deposit source. Banks have no balance
// the wallet can see, so both balances are zero.
func (b LinkedBank) BankSource() Source {
	return NewStatic(b.Name, SourceBank, b.Fiat, b.ID, money.Zero(b.Fiat), money.Zero(b.Fiat))
}
