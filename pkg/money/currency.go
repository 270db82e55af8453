package money

import (
	"fmt"
	"strings"
	"sync"
)

// Kind tells crypto assets and fiat currencies apart
type Kind int

const (
	KindCrypto Kind = iota
	KindFiat
)

func (k Kind) String() string {
	switch k {
	case KindCrypto:
		return "crypto"
	case KindFiat:
		return "fiat"
	default:
		return "unknown"
	}
}

// Currency describes a crypto asset or a fiat currency.
// Decimals is the number of minor units per major unit as a power of ten.
// Chain and Contract are only set for crypto assets; Contract is the token
// contract (or mint) for assets that live on another asset's chain.
type Currency struct {
	Code     string
	Kind     Kind
	Decimals int32
	Chain    string
	Contract string
}

// IsCrypto returns true for crypto assets
func (c Currency) IsCrypto() bool {
	return c.Kind == KindCrypto
}

// IsFiat returns true for fiat currencies
func (c Currency) IsFiat() bool {
	return c.Kind == KindFiat
}

// IsToken returns true for assets issued by a contract on a host chain
func (c Currency) IsToken() bool {
	return c.IsCrypto() && c.Contract != ""
}

func (c Currency) String() string {
	return c.Code
}

// Known assets
var (
	BTC  = Currency{Code: "BTC", Kind: KindCrypto, Decimals: 8, Chain: "bitcoin"}
	ETH  = Currency{Code: "ETH", Kind: KindCrypto, Decimals: 18, Chain: "ethereum"}
	SOL  = Currency{Code: "SOL", Kind: KindCrypto, Decimals: 9, Chain: "solana"}
	USDC = Currency{Code: "USDC", Kind: KindCrypto, Decimals: 6, Chain: "ethereum", Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	PAX  = Currency{Code: "PAX", Kind: KindCrypto, Decimals: 18, Chain: "ethereum", Contract: "0x8E870D67F660D95d5be530380D0eC0bd388289E1"}
	XLM  = Currency{Code: "XLM", Kind: KindCrypto, Decimals: 7, Chain: "stellar"}

	USD = Currency{Code: "USD", Kind: KindFiat, Decimals: 2}
	EUR = Currency{Code: "EUR", Kind: KindFiat, Decimals: 2}
	GBP = Currency{Code: "GBP", Kind: KindFiat, Decimals: 2}
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Currency{}
)

func init() {
	for _, c := range []Currency{BTC, ETH, SOL, USDC, PAX, XLM, USD, EUR, GBP} {
		registry[c.Code] = c
	}
}

// Register adds or replaces a currency in the lookup table
func Register(c Currency) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToUpper(c.Code)] = c
}

// Lookup finds a registered currency by code, case-insensitively
func Lookup(code string) (Currency, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// MustLookup is Lookup for codes known at compile time
func MustLookup(code string) Currency {
	c, ok := Lookup(code)
	if !ok {
		panic(fmt.Sprintf("money: unknown currency %q", code))
	}
	return c
}

// Fiat returns the registered fiat currency for code
func Fiat(code string) (Currency, error) {
	c, ok := Lookup(code)
	if !ok || !c.IsFiat() {
		return Currency{}, fmt.Errorf("unknown fiat currency %q", code)
	}
	return c, nil
}

// Crypto returns the registered crypto asset for code
func Crypto(code string) (Currency, error) {
	c, ok := Lookup(code)
	if !ok || !c.IsCrypto() {
		return Currency{}, fmt.Errorf("unknown crypto asset %q", code)
	}
	return c, nil
}
