package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"walletcore/pkg/custodial"
	"walletcore/pkg/engine"
	"walletcore/pkg/money"
	"walletcore/pkg/parser"
	"walletcore/pkg/tx"
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <asset> to <asset>",
	Short: "Swap one crypto asset for another inside the trading account",
	Long: `Swap crypto held in your trading account for another asset. Both sides
stay in the trading account; the network fee of the asset you receive is
taken from the proceeds and raises the minimum you can swap.

The market price is shown next to the backend quote for reference.

Examples:
  walletcore swap 0.1 BTC to ETH
  walletcore swap 250 USDC for SOL --yes`,
	Args: cobra.ExactArgs(4),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
}

func runSwap(cmd *cobra.Command, args []string) error {
	req, amount, err := parseRequest("swap", args)
	if err != nil {
		return err
	}
	from := amount.Currency()
	to, ok := money.Lookup(parser.NormalizeTokenSymbol(req.Target))
	if !ok {
		return fmt.Errorf("unsupported asset %s", req.Target)
	}
	if !from.IsCrypto() || !to.IsCrypto() {
		return fmt.Errorf("swap needs two crypto assets, got %s and %s", from.Code, to.Code)
	}
	if from == to {
		return fmt.Errorf("cannot swap %s for itself", from.Code)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); !jsonOutput {
		if price, err := marketPrice(ctx, a.rates, from, to); err == nil {
			fmt.Printf("\nMarket price: 1 %s ≈ %s\n", from.Code, color.CyanString(price.Display()))
		}
	}

	return runTransfer(cmd, a, transfer{
		source: custodial.NewAccount(a.custody, custodial.ProductTrading, from),
		target: custodial.NewAccount(a.custody, custodial.ProductTrading, to),
		action: engine.ActionSwap,
		amount: amount,
	})
}

// marketPrice is the price of one unit of from in to, crossed through USD
func marketPrice(ctx context.Context, rp tx.RateProvider, from, to money.Currency) (money.Money, error) {
	fromUSD, err := rp.Rate(ctx, from, money.USD)
	if err != nil {
		return money.Money{}, err
	}
	toUSD, err := rp.Rate(ctx, to, money.USD)
	if err != nil {
		return money.Money{}, err
	}
	usd, err := fromUSD.Convert(money.FromMajor(from, decimal.NewFromInt(1)))
	if err != nil {
		return money.Money{}, err
	}
	return toUSD.ConvertBack(usd)
}
