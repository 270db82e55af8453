package chain

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/config"
	"walletcore/pkg/money"
)

func TestManagerFromConfig(t *testing.T) {
	m, err := FromConfig(config.ChainsConfig{
		EVM: config.EVMConfig{Networks: map[string]config.EVMNetwork{
			"ethereum": {RPCURL: "http://127.0.0.1:8545", ChainID: 1, PrivateKey: testKey, Tokens: []string{"USDC"}},
		}},
		Bitcoin: config.BitcoinConfig{Network: "testnet"},
	})
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []money.Currency{money.ETH, money.USDC}, m.Assets())

	s, err := m.SignerFor(money.USDC)
	require.NoError(t, err)
	assert.Equal(t, money.ETH, s.FeeAsset())

	_, err = m.SignerFor(money.BTC)
	assert.ErrorIs(t, err, ErrUnsupportedChain)

	assert.NoError(t, m.ValidateAddress(money.BTC, p2pkh(t, &chaincfg.TestNet3Params)))
}

func TestManagerFromConfigRejectsForeignToken(t *testing.T) {
	_, err := FromConfig(config.ChainsConfig{
		EVM: config.EVMConfig{Networks: map[string]config.EVMNetwork{
			"ethereum": {RPCURL: "http://127.0.0.1:8545", ChainID: 1, PrivateKey: testKey, Tokens: []string{"BTC"}},
		}},
	})
	assert.ErrorContains(t, err, "not a token")
}

func TestManagerRegister(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)
	m := NewManager(v)

	s, err := NewSolanaSigner(money.SOL, solanaConfig(t), newFakeSolana())
	require.NoError(t, err)
	m.Register(s)

	got, err := m.SignerFor(money.SOL)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManagerAccount(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)
	m := NewManager(v)

	s, err := NewSolanaSigner(money.SOL, solanaConfig(t), newFakeSolana())
	require.NoError(t, err)
	m.Register(s)

	acct, err := m.Account(money.SOL)
	require.NoError(t, err)
	assert.Equal(t, s.Address().String(), acct.Address)

	actionable, err := acct.ActionableBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.5", actionable.Major().String())

	_, err = m.Account(money.BTC)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}
