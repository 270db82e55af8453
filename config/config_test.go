package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/money"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Fiat)
	assert.Equal(t, money.USD, cfg.UserFiat())
	assert.Equal(t, 30*time.Second, cfg.Custodial.Timeout)
	assert.Equal(t, time.Minute, cfg.Rates.CacheTTL)
	assert.Equal(t, "mainnet", cfg.Chains.Bitcoin.Network)
	assert.Equal(t, filepath.Join(home, ".walletcore", "journal.json"), cfg.Journal.Path)
	assert.False(t, cfg.Security.SecondPasswordRequired)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WALLETCORE_FIAT", "eur")
	t.Setenv("WALLETCORE_CUSTODIAL_API_KEY", "secret")
	t.Setenv("WALLETCORE_SECURITY_SECOND_PASSWORD_REQUIRED", "true")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, money.EUR, cfg.UserFiat())
	assert.Equal(t, "secret", cfg.Custodial.APIKey)
	assert.True(t, cfg.Security.SecondPasswordRequired)
}

func TestLoadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	yaml := `
fiat: GBP
custodial:
  timeout: 10s
  note_supported: true
rates:
  static:
    BTC-USD: "20000"
chains:
  evm:
    networks:
      ethereum:
        rpc_url: http://localhost:8545
        chain_id: 1
        private_key: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
        gas_limit: 21000
        tokens: [USDC]
  bitcoin:
    network: testnet
`
	require.NoError(t, os.WriteFile(filepath.Join(home, ".walletcore.yaml"), []byte(yaml), 0o600))

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, money.GBP, cfg.UserFiat())
	assert.Equal(t, 10*time.Second, cfg.Custodial.Timeout)
	assert.True(t, cfg.Custodial.NoteSupported)
	// viper folds keys to lower case
	assert.Equal(t, "20000", cfg.Rates.Static["btc-usd"])

	eth, ok := cfg.Chains.EVM.Networks["ethereum"]
	require.True(t, ok)
	assert.Equal(t, int64(1), eth.ChainID)
	require.NotNil(t, eth.GasLimit)
	assert.Equal(t, uint64(21000), *eth.GasLimit)
	assert.Nil(t, eth.GasPrice)
	assert.Equal(t, []string{"USDC"}, eth.Tokens)
	assert.Equal(t, "testnet", cfg.Chains.Bitcoin.Network)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Fiat:      "USD",
			Custodial: CustodialConfig{Timeout: time.Second},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown fiat", func(c *Config) { c.Fiat = "BTC" }, "fiat"},
		{"zero timeout", func(c *Config) { c.Custodial.Timeout = 0 }, "custodial.timeout"},
		{"negative cache ttl", func(c *Config) { c.Rates.CacheTTL = -time.Second }, "rates.cache_ttl"},
		{"bitcoin network", func(c *Config) { c.Chains.Bitcoin.Network = "moonnet" }, "bitcoin network"},
		{"evm without rpc", func(c *Config) {
			c.Chains.EVM.Networks = map[string]EVMNetwork{"base": {PrivateKey: "0x01"}}
		}, "RPC URL"},
		{"evm without key", func(c *Config) {
			c.Chains.EVM.Networks = map[string]EVMNetwork{"base": {RPCURL: "http://localhost:8545"}}
		}, "no key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.errMsg)
		})
	}
}
