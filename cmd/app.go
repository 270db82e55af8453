package cmd

import (
	"fmt"

	"walletcore/config"
	"walletcore/pkg/account"
	"walletcore/pkg/chain"
	"walletcore/pkg/client"
	"walletcore/pkg/custodial"
	"walletcore/pkg/engine"
	"walletcore/pkg/journal"
	"walletcore/pkg/money"
	"walletcore/pkg/rates"
	"walletcore/pkg/tx"
)

// app holds everything a command needs to build and run a transaction
type app struct {
	cfg      *config.Config
	chains   *chain.Manager
	custody  *custodial.Client
	oneClick *client.OneClickClient
	rates    *rates.Cache
	factory  *engine.Factory
	journal  *journal.Journal
}

func newApp() (*app, error) {
	cfg := config.Get()

	chains, err := chain.FromConfig(cfg.Chains)
	if err != nil {
		return nil, fmt.Errorf("chains: %w", err)
	}

	static, err := rates.NewStatic(cfg.Rates.Static)
	if err != nil {
		chains.Close()
		return nil, fmt.Errorf("rates: %w", err)
	}

	custody := custodial.NewClient(cfg.Custodial.BaseURL, cfg.Custodial.APIKey, cfg.Custodial.Timeout)
	oneClick := client.NewOneClickClient(cfg.OneClick.JWTToken, cfg.OneClick.BaseURL, cfg.Custodial.Timeout)

	var providers rates.Chain
	if cfg.OneClick.JWTToken != "" {
		providers = append(providers, rates.NewOneClick(oneClick, cfg.OneClick.RefundAddress))
	}
	providers = append(providers, static)
	rp := rates.NewCache(providers, cfg.Rates.CacheTTL)

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		chains.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	factory := &engine.Factory{
		Signers:       chains,
		Backend:       custody,
		Rates:         rp,
		Addresses:     chains,
		Passwords:     tx.StaticPasswordPolicy(cfg.Security.SecondPasswordRequired),
		UserFiat:      cfg.UserFiat(),
		NoteSupported: cfg.Custodial.NoteSupported,
	}
	if cfg.Custodial.TieredQuotes {
		factory.Quotes = custodial.NewTieredQuoteSource(custody)
	}

	return &app{
		cfg:      cfg,
		chains:   chains,
		custody:  custody,
		oneClick: oneClick,
		rates:    rp,
		factory:  factory,
		journal:  j,
	}, nil
}

func (a *app) Close() {
	a.chains.Close()
}

// source returns the account funds are spent from. from is one of
// wallet, trading or rewards.
func (a *app) source(from string, asset money.Currency) (account.Source, error) {
	switch from {
	case "", "wallet":
		return a.chains.Account(asset)
	case "trading":
		return custodial.NewAccount(a.custody, custodial.ProductTrading, asset), nil
	case "rewards", "interest":
		return custodial.NewAccount(a.custody, custodial.ProductInterest, asset), nil
	default:
		return nil, fmt.Errorf("unknown source %q (expected wallet, trading or rewards)", from)
	}
}

// fiatWallet is the custodial fiat balance in currency
func (a *app) fiatWallet(fiat money.Currency) *custodial.Account {
	return custodial.NewAccount(a.custody, custodial.ProductTrading, fiat)
}

// bank is the linked bank from config
func (a *app) bank(fiat money.Currency) (account.LinkedBank, error) {
	if a.cfg.Bank.ID == "" {
		return account.LinkedBank{}, fmt.Errorf("no bank linked, set bank.id in the config")
	}
	return account.LinkedBank{ID: a.cfg.Bank.ID, Name: a.cfg.Bank.Label, Fiat: fiat}, nil
}
