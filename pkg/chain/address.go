package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"walletcore/pkg/money"
)

var (
	// ErrInvalidAddress is matched by every address validation failure
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnsupportedChain is returned for assets no signer or validator knows
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// evmChains are the chain names validated as EVM addresses
var evmChains = map[string]bool{
	"ethereum":  true,
	"base":      true,
	"arbitrum":  true,
	"optimism":  true,
	"polygon":   true,
	"bsc":       true,
	"avalanche": true,
}

// IsEVM reports whether chain uses EVM addresses
func IsEVM(chain string) bool {
	return evmChains[strings.ToLower(chain)]
}

// BitcoinParams maps a configured network name to its parameters
func BitcoinParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", network)
	}
}

// Validator checks raw target addresses against the asset's chain
type Validator struct {
	Bitcoin *chaincfg.Params
}

// NewValidator validates bitcoin addresses for the given network
func NewValidator(bitcoinNetwork string) (*Validator, error) {
	params, err := BitcoinParams(bitcoinNetwork)
	if err != nil {
		return nil, err
	}
	return &Validator{Bitcoin: params}, nil
}

// ValidateAddress returns an error matching ErrInvalidAddress when address
// cannot receive asset
func (v *Validator) ValidateAddress(asset money.Currency, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("%w: empty %s address", ErrInvalidAddress, asset.Code)
	}

	switch chain := strings.ToLower(asset.Chain); {
	case IsEVM(chain):
		return validateEVM(address)
	case chain == "solana":
		return validateSolana(address)
	case chain == "bitcoin":
		return v.validateBitcoin(address)
	default:
		return fmt.Errorf("%w: %s on %q", ErrUnsupportedChain, asset.Code, asset.Chain)
	}
}

func validateEVM(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %s is not a hex address", ErrInvalidAddress, address)
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	mixed := strings.ToLower(hex) != hex && strings.ToUpper(hex) != hex
	if mixed && common.HexToAddress(address).Hex() != "0x"+hex {
		return fmt.Errorf("%w: %s has a bad checksum", ErrInvalidAddress, address)
	}
	return nil
}

func validateSolana(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	return nil
}

func (v *Validator) validateBitcoin(address string) error {
	params := v.Bitcoin
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	if !addr.IsForNet(params) {
		return fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, address, params.Name)
	}
	return nil
}
