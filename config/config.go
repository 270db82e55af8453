package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"walletcore/pkg/money"
)

// Config holds the application configuration
type Config struct {
	Env       string          `mapstructure:"env"`
	LogLevel  string          `mapstructure:"log_level"`
	Fiat      string          `mapstructure:"fiat"`
	Security  SecurityConfig  `mapstructure:"security"`
	Custodial CustodialConfig `mapstructure:"custodial"`
	OneClick  OneClickConfig  `mapstructure:"oneclick"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Chains    ChainsConfig    `mapstructure:"chains"`
	Bank      BankConfig      `mapstructure:"bank"`
	Journal   JournalConfig   `mapstructure:"journal"`
}

type SecurityConfig struct {
	SecondPasswordRequired bool `mapstructure:"second_password_required"`
}

// CustodialConfig points at the custodial order backend
type CustodialConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	NoteSupported bool          `mapstructure:"note_supported"`
	TieredQuotes  bool          `mapstructure:"tiered_quotes"`
}

// OneClickConfig is the 1Click API used for market rates
type OneClickConfig struct {
	JWTToken      string `mapstructure:"jwt_token"`
	BaseURL       string `mapstructure:"base_url"`
	RefundAddress string `mapstructure:"refund_address"`
}

type RatesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// Static maps "BTC-USD" to a decimal rate
	Static map[string]string `mapstructure:"static"`
}

type ChainsConfig struct {
	EVM     EVMConfig     `mapstructure:"evm"`
	Solana  SolanaConfig  `mapstructure:"solana"`
	Bitcoin BitcoinConfig `mapstructure:"bitcoin"`
}

// EVMConfig holds one entry per EVM network, keyed by chain name
type EVMConfig struct {
	Networks map[string]EVMNetwork `mapstructure:"networks"`
}

// EVMNetwork configures the signer of one EVM network. Either PrivateKey
// or KeystorePath must be set; a keystore is unlocked with the second
// password.
type EVMNetwork struct {
	RPCURL             string   `mapstructure:"rpc_url"`
	ChainID            int64    `mapstructure:"chain_id"`
	NativeAsset        string   `mapstructure:"native_asset"`
	Tokens             []string `mapstructure:"tokens"`
	PrivateKey         string   `mapstructure:"private_key"`
	KeystorePath       string   `mapstructure:"keystore_path"`
	GasLimit           *uint64  `mapstructure:"gas_limit"`
	GasPrice           *int64   `mapstructure:"gas_price"`
	PriorityMultiplier float64  `mapstructure:"priority_multiplier"`
}

type SolanaConfig struct {
	RPCURL        string   `mapstructure:"rpc_url"`
	PrivateKey    string   `mapstructure:"private_key"`
	Commitment    string   `mapstructure:"commitment"`
	SkipPreflight bool     `mapstructure:"skip_preflight"`
	Tokens        []string `mapstructure:"tokens"`
}

type BitcoinConfig struct {
	Network string `mapstructure:"network"`
}

// BankConfig is the linked bank used by the bank commands
type BankConfig struct {
	ID    string `mapstructure:"id"`
	Label string `mapstructure:"label"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("fiat", "USD")
	v.SetDefault("security.second_password_required", false)
	v.SetDefault("custodial.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("custodial.api_key", "")
	v.SetDefault("custodial.timeout", 30*time.Second)
	v.SetDefault("custodial.note_supported", false)
	v.SetDefault("custodial.tiered_quotes", false)
	v.SetDefault("oneclick.jwt_token", "")
	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("oneclick.refund_address", "")
	v.SetDefault("rates.cache_ttl", time.Minute)
	v.SetDefault("chains.solana.rpc_url", "")
	v.SetDefault("chains.solana.private_key", "")
	v.SetDefault("chains.solana.commitment", "confirmed")
	v.SetDefault("chains.solana.skip_preflight", false)
	v.SetDefault("chains.bitcoin.network", "mainnet")
	v.SetDefault("bank.id", "")
	v.SetDefault("bank.label", "Linked bank")
	v.SetDefault("journal.path", "$HOME/.walletcore/journal.json")
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	return load(viper.GetViper())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".walletcore")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	// WALLETCORE_CUSTODIAL_API_KEY sets custodial.api_key
	v.SetEnvPrefix("WALLETCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Journal.Path = os.ExpandEnv(cfg.Journal.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Validate checks values viper cannot type check
func (c *Config) Validate() error {
	if _, err := money.Fiat(c.Fiat); err != nil {
		return fmt.Errorf("fiat: %w", err)
	}
	if c.Custodial.Timeout <= 0 {
		return fmt.Errorf("custodial.timeout must be positive, got %s", c.Custodial.Timeout)
	}
	if c.Rates.CacheTTL < 0 {
		return fmt.Errorf("rates.cache_ttl must not be negative, got %s", c.Rates.CacheTTL)
	}
	switch strings.ToLower(c.Chains.Bitcoin.Network) {
	case "", "mainnet", "testnet", "testnet3", "regtest", "signet":
	default:
		return fmt.Errorf("unknown bitcoin network %q", c.Chains.Bitcoin.Network)
	}
	for name, n := range c.Chains.EVM.Networks {
		if n.RPCURL == "" {
			return fmt.Errorf("RPC URL not configured for network %s", name)
		}
		if n.PrivateKey == "" && n.KeystorePath == "" {
			return fmt.Errorf("no key configured for network %s", name)
		}
	}
	return nil
}

// UserFiat returns the configured fiat currency
func (c *Config) UserFiat() money.Currency {
	fiat, err := money.Fiat(c.Fiat)
	if err != nil {
		return money.USD
	}
	return fiat
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
