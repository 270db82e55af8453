package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"walletcore/pkg/custodial"
	"walletcore/pkg/engine"
	"walletcore/pkg/journal"
	"walletcore/pkg/money"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Move fiat between the linked bank and the fiat wallet",
}

var bankDepositCmd = &cobra.Command{
	Use:   "deposit <amount> [fiat]",
	Short: "Deposit fiat from the linked bank",
	Long: `Pull fiat from your linked bank into the fiat wallet. Open banking
deposits print a link where your bank asks you to approve the payment.

Examples:
  walletcore bank deposit 250
  walletcore bank deposit 250 EUR`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBankDeposit,
}

var bankWithdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> [fiat]",
	Short: "Withdraw fiat to the linked bank",
	Long: `Send fiat from the fiat wallet to your linked bank.

Examples:
  walletcore bank withdraw 100
  walletcore bank withdraw 100 GBP`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBankWithdraw,
}

var bankStatusCmd = &cobra.Command{
	Use:   "status <payment-id>",
	Short: "Check the state of a bank payment",
	Long: `Check an open banking payment and update its history entry once the
bank settles it.

Examples:
  walletcore bank status 7f3c...
  walletcore bank status 7f3c... --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	RunE: runBankStatus,
}

func init() {
	rootCmd.AddCommand(bankCmd)
	bankCmd.AddCommand(bankDepositCmd, bankWithdrawCmd, bankStatusCmd)

	bankStatusCmd.Flags().BoolP("watch", "w", false, "Watch the payment until it settles")
	bankStatusCmd.Flags().Int("interval", 5, "Polling interval in seconds (when watching)")
}

func parseFiatAmount(a *app, args []string) (money.Money, error) {
	fiat := a.cfg.UserFiat()
	if len(args) > 1 {
		var err error
		fiat, err = money.Fiat(strings.ToUpper(args[1]))
		if err != nil {
			return money.Money{}, err
		}
	}
	amount, err := money.Parse(fiat, args[0])
	if err != nil {
		return money.Money{}, err
	}
	if !amount.IsPositive() {
		return money.Money{}, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func runBankDeposit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	amount, err := parseFiatAmount(a, args)
	if err != nil {
		return err
	}
	bank, err := a.bank(amount.Currency())
	if err != nil {
		return err
	}
	return runTransfer(cmd, a, transfer{
		source: bank.BankSource(),
		target: a.fiatWallet(amount.Currency()),
		action: engine.ActionDeposit,
		amount: amount,
	})
}

func runBankWithdraw(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	amount, err := parseFiatAmount(a, args)
	if err != nil {
		return err
	}
	bank, err := a.bank(amount.Currency())
	if err != nil {
		return err
	}
	return runTransfer(cmd, a, transfer{
		source: a.fiatWallet(amount.Currency()),
		target: bank,
		action: engine.ActionWithdraw,
		amount: amount,
	})
}

// settledStatus maps a bank charge state to a journal status. ok is false
// while the payment is still open.
func settledStatus(state string) (journal.Status, bool) {
	switch strings.ToUpper(state) {
	case "CLEARED", "COMPLETED", "SETTLED":
		return journal.StatusCompleted, true
	case "FAILED", "REJECTED", "CANCELLED", "EXPIRED":
		return journal.StatusFailed, true
	default:
		return "", false
	}
}

func runBankStatus(cmd *cobra.Command, args []string) error {
	paymentID := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetInt("interval")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if watch && jsonOutput {
		return fmt.Errorf("watch mode not supported with JSON output")
	}
	if !watch {
		return checkBankStatus(cmd, a, paymentID, jsonOutput)
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	fmt.Printf("\nWatching payment %s\n", color.CyanString(paymentID))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", interval)

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		charge, err := a.custody.GetBankTransferCharge(cmd.Context(), paymentID)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayCharge(charge)
			if _, done := settledStatus(charge.State); done {
				return recordSettlement(a, charge)
			}
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func checkBankStatus(cmd *cobra.Command, a *app, paymentID string, jsonOutput bool) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking payment status..."
		s.Start()
	}
	charge, err := a.custody.GetBankTransferCharge(cmd.Context(), paymentID)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if err := recordSettlement(a, charge); err != nil {
		return err
	}
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(charge, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}
	displayCharge(charge)
	return nil
}

// recordSettlement moves the journal entries of a settled payment out of
// awaiting approval
func recordSettlement(a *app, charge custodial.BankTransferCharge) error {
	status, done := settledStatus(charge.State)
	if !done {
		return nil
	}
	for _, r := range a.journal.ByStatus(journal.StatusAwaitingApproval) {
		if r.TxID != charge.PaymentID {
			continue
		}
		if err := a.journal.SetStatus(r.ID, status); err != nil {
			return err
		}
	}
	return nil
}

func displayCharge(charge custodial.BankTransferCharge) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      PAYMENT STATUS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("  %-16s %s\n", "Payment ID:", charge.PaymentID)
	fmt.Printf("  %-16s %s\n", "Amount:", charge.Amount.Display())

	state := strings.ToUpper(charge.State)
	switch status, _ := settledStatus(state); status {
	case journal.StatusCompleted:
		fmt.Printf("  %-16s %s\n", "State:", color.GreenString(state))
	case journal.StatusFailed:
		fmt.Printf("  %-16s %s\n", "State:", color.RedString(state))
	default:
		fmt.Printf("  %-16s %s\n", "State:", color.YellowString(state))
	}
	if charge.Authorised() {
		fmt.Printf("  %-16s %s\n", "Approve at:", color.CyanString(charge.AuthorisationURL))
	}
	fmt.Println(strings.Repeat("=", 60))
}
