package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"walletcore/pkg/account"
	"walletcore/pkg/engine"
	"walletcore/pkg/money"
	"walletcore/pkg/parser"
	"walletcore/pkg/types"
)

var sendCmd = &cobra.Command{
	Use:   "send <amount> <asset> to <address> [memo <memo>]",
	Short: "Send crypto to an address",
	Long: `Send crypto from your wallet, trading or rewards account to an on-chain
address. Wallet sends are signed locally; custodial sends are ordered
through the backend.

Examples:
  walletcore send 0.5 ETH to 0x1234...abcd
  walletcore send 25 USDC to 0x1234...abcd --fee priority
  walletcore send 1 SOL to 9xQe... --from trading
  walletcore send 2 ETH to 0x1234...abcd --fee custom --custom-fee 30`,
	Args: cobra.MinimumNArgs(4),
	RunE: runSend,
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> <asset> to <address>",
	Short: "Withdraw crypto from a custodial account",
	Long: `Withdraw crypto from your trading or rewards account to an on-chain
address. The backend charges a withdrawal fee that is shown before you
confirm.

Examples:
  walletcore withdraw 100 USDC to 0x1234...abcd
  walletcore withdraw 0.2 ETH to 0x1234...abcd --from rewards`,
	Args: cobra.MinimumNArgs(4),
	RunE: runWithdraw,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(withdrawCmd)

	sendCmd.Flags().String("from", "wallet", "Source account: wallet, trading or rewards")
	addTransferFlags(sendCmd)

	withdrawCmd.Flags().String("from", "trading", "Source account: trading or rewards")
	addTransferFlags(withdrawCmd)
}

// parseRequest parses args as "<action> <args...>" and resolves the asset
func parseRequest(action string, args []string) (*types.TransferRequest, money.Money, error) {
	req, err := parser.ParseTransferCommand(action + " " + strings.Join(args, " "))
	if err != nil {
		return nil, money.Money{}, err
	}
	asset, ok := money.Lookup(req.Asset)
	if !ok {
		return nil, money.Money{}, fmt.Errorf("unsupported asset %s", req.Asset)
	}
	amount, err := money.Parse(asset, req.Amount)
	if err != nil {
		return nil, money.Money{}, err
	}
	if !amount.IsPositive() {
		return nil, money.Money{}, fmt.Errorf("amount must be positive")
	}
	return req, amount, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	action := engine.ActionSend
	if from == "rewards" || from == "interest" {
		action = engine.ActionAny
	}
	return runAddressTransfer(cmd, "send", args, from, action)
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	if from == "wallet" || from == "" {
		return fmt.Errorf("withdraw needs a custodial source, use send for wallet funds")
	}
	return runAddressTransfer(cmd, "withdraw", args, from, engine.ActionWithdraw)
}

func runAddressTransfer(cmd *cobra.Command, verb string, args []string, from string, action engine.Action) error {
	req, amount, err := parseRequest(verb, args)
	if err != nil {
		return err
	}
	asset := amount.Currency()
	if !asset.IsCrypto() {
		return fmt.Errorf("%s only moves crypto, use the bank commands for %s", verb, asset.Code)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := a.source(from, asset)
	if err != nil {
		return err
	}
	target := account.CryptoAddress{Asset: asset, Address: req.Target, Memo: req.Memo}

	t := transfer{source: source, target: target, action: action, amount: amount}
	t.readFlags(cmd)
	return runTransfer(cmd, a, t)
}
