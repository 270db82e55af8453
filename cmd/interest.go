package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"walletcore/pkg/custodial"
	"walletcore/pkg/engine"
)

var interestCmd = &cobra.Command{
	Use:     "interest",
	Aliases: []string{"rewards"},
	Short:   "Earn rewards on crypto held in the rewards account",
}

var interestDepositCmd = &cobra.Command{
	Use:   "deposit <amount> <asset>",
	Short: "Move crypto from your wallet or trading account into the rewards account",
	Long: `Send crypto from your wallet to your rewards account deposit address, or
move it over from your trading account with --from trading. Deposits are
locked up for a period set by the backend, so you must accept the rewards
terms and the lock-up before the transfer is sent.

Use "walletcore withdraw <amount> <asset> to <address> --from rewards" to
take funds out again.

Examples:
  walletcore interest deposit 1 ETH --accept-terms
  walletcore rewards deposit 500 USDC --accept-terms --yes
  walletcore interest deposit 0.2 BTC --from trading --accept-terms`,
	Args: cobra.ExactArgs(2),
	RunE: runInterestDeposit,
}

func init() {
	rootCmd.AddCommand(interestCmd)
	interestCmd.AddCommand(interestDepositCmd)

	interestDepositCmd.Flags().Bool("accept-terms", false, "Accept the rewards terms and the lock-up of the deposit")
	interestDepositCmd.Flags().String("from", "wallet", "Account to deposit from: wallet or trading")
}

func runInterestDeposit(cmd *cobra.Command, args []string) error {
	_, amount, err := parseRequest("deposit", args)
	if err != nil {
		return err
	}
	asset := amount.Currency()
	if !asset.IsCrypto() {
		return fmt.Errorf("only crypto earns rewards, got %s", asset.Code)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	from, _ := cmd.Flags().GetString("from")
	if from != "wallet" && from != "trading" {
		return fmt.Errorf("rewards deposits come from wallet or trading, not %q", from)
	}
	source, err := a.source(from, asset)
	if err != nil {
		return err
	}
	accept, _ := cmd.Flags().GetBool("accept-terms")
	return runTransfer(cmd, a, transfer{
		source:      source,
		target:      custodial.NewAccount(a.custody, custodial.ProductInterest, asset),
		action:      engine.ActionDeposit,
		amount:      amount,
		acceptTerms: accept,
	})
}
