package chain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/money"
)

func p2pkh(t *testing.T, params *chaincfg.Params) string {
	t.Helper()
	addr, err := btcutil.NewAddressPubKeyHash(make([]byte, 20), params)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func TestValidateAddress(t *testing.T) {
	v, err := NewValidator("mainnet")
	require.NoError(t, err)

	tests := []struct {
		name    string
		asset   money.Currency
		address string
		valid   bool
	}{
		{"evm lower case", money.ETH, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"evm checksummed", money.ETH, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"evm bad checksum", money.ETH, "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"evm short", money.USDC, "0xdead", false},
		{"solana", money.SOL, "11111111111111111111111111111111", true},
		{"solana not base58", money.SOL, "0OIl-not-base58", false},
		{"bitcoin mainnet", money.BTC, p2pkh(t, &chaincfg.MainNetParams), true},
		{"bitcoin testnet on mainnet", money.BTC, p2pkh(t, &chaincfg.TestNet3Params), false},
		{"bitcoin garbage", money.BTC, "bc1qnotreal", false},
		{"empty", money.BTC, "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAddress(tt.asset, tt.address)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			}
		})
	}
}

func TestValidateAddressTestnet(t *testing.T) {
	v, err := NewValidator("testnet")
	require.NoError(t, err)

	assert.NoError(t, v.ValidateAddress(money.BTC, p2pkh(t, &chaincfg.TestNet3Params)))
	assert.ErrorIs(t, v.ValidateAddress(money.BTC, p2pkh(t, &chaincfg.MainNetParams)), ErrInvalidAddress)
}

func TestValidateAddressUnsupportedChain(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)

	err = v.ValidateAddress(money.XLM, "GABC")
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestBitcoinParams(t *testing.T) {
	p, err := BitcoinParams("Signet")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.SigNetParams.Name, p.Name)

	_, err = BitcoinParams("moonnet")
	assert.Error(t, err)
}
