package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"walletcore/pkg/engine"
	"walletcore/pkg/money"
)

var sellCmd = &cobra.Command{
	Use:   "sell <amount> <asset> [for <fiat>]",
	Short: "Sell crypto from the trading account into the fiat wallet",
	Long: `Sell crypto held in your trading account. The proceeds land in your fiat
wallet in the given currency, or your default currency when none is given.
The quote is refreshed until you confirm.

Examples:
  walletcore sell 0.1 BTC
  walletcore sell 0.1 BTC for EUR
  walletcore sell 250 ETH for USD --in-fiat`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSell,
}

func init() {
	rootCmd.AddCommand(sellCmd)

	sellCmd.Flags().Bool("in-fiat", false, "Read the amount in the fiat currency instead of the asset")
}

func runSell(cmd *cobra.Command, args []string) error {
	req, amount, err := parseRequest("sell", args)
	if err != nil {
		return err
	}
	asset := amount.Currency()
	if !asset.IsCrypto() {
		return fmt.Errorf("cannot sell %s", asset.Code)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fiat := a.cfg.UserFiat()
	if req.Target != "" {
		fiat, err = money.Fiat(strings.ToUpper(req.Target))
		if err != nil {
			return err
		}
	}

	if inFiat, _ := cmd.Flags().GetBool("in-fiat"); inFiat {
		amount, err = money.Parse(fiat, req.Amount)
		if err != nil {
			return err
		}
	}

	source, err := a.source("trading", asset)
	if err != nil {
		return err
	}
	return runTransfer(cmd, a, transfer{source: source, target: a.fiatWallet(fiat), action: engine.ActionSell, amount: amount})
}
