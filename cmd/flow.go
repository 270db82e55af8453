package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"walletcore/pkg/account"
	"walletcore/pkg/engine"
	"walletcore/pkg/journal"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// transfer is one transaction the CLI walks through the processor
type transfer struct {
	source account.Source
	target account.Target
	action engine.Action
	amount money.Money

	feeLevel    string
	customFee   int64
	note        string
	acceptTerms bool
}

// flowOutput is what --json prints
type flowOutput struct {
	Record        journal.Record `json:"record"`
	Confirmations []confirmation `json:"confirmations"`
}

type confirmation struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// addTransferFlags registers the flags every transfer command shares
func addTransferFlags(c *cobra.Command) {
	c.Flags().String("fee", "", "Fee level: regular, priority or custom")
	c.Flags().Int64("custom-fee", tx.NoCustomFee, "Custom fee in the chain's fee unit (with --fee custom)")
	c.Flags().String("note", "", "Note stored with custodial transfers")
}

func (t *transfer) readFlags(cmd *cobra.Command) {
	t.feeLevel, _ = cmd.Flags().GetString("fee")
	t.customFee, _ = cmd.Flags().GetInt64("custom-fee")
	t.note, _ = cmd.Flags().GetString("note")
}

// runTransfer builds, validates, confirms and executes t, then records
// the outcome in the journal
func runTransfer(cmd *cobra.Command, a *app, t transfer) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	skipConfirm, _ := cmd.Flags().GetBool("yes")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Preparing transaction..."
		s.Start()
	}
	proc, ptx, err := prepare(ctx, a, t)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}
	if noteIgnored(t, ptx) {
		fmt.Fprintln(os.Stderr, color.YellowString("Warning: this transfer does not keep notes, --note was ignored"))
	}

	confirmations := describe(ptx)
	if !jsonOutput {
		displayConfirmations(ptx, confirmations)
	}
	if err := tx.StateError(ptx.ValidationState); err != nil {
		return fmt.Errorf("%s: %w", ptx.ValidationState.Message(), err)
	}

	if !skipConfirm && !jsonOutput {
		if !askConfirmation("Do you want to proceed?") {
			fmt.Println("\nTransaction cancelled.")
			return nil
		}
	}

	var password string
	if a.cfg.Security.SecondPasswordRequired {
		password, err = readSecondPassword()
		if err != nil {
			return err
		}
	}

	if !jsonOutput {
		s.Suffix = " Executing..."
		s.Start()
	}
	res, execErr := proc.Execute(ctx, ptx, password)
	if !jsonOutput {
		s.Stop()
	}

	rec := journal.NewRecord(proc.Engine().Name(), t.action.String(), t.source.Label(), t.target.Label(), ptx, res, execErr)
	if saved, err := a.journal.Add(rec); err != nil {
		color.Yellow("Warning: could not write history: %v", err)
	} else {
		rec = saved
	}

	var approval *tx.ApprovalRequiredError
	if execErr != nil && !errors.As(execErr, &approval) {
		return execErr
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(flowOutput{Record: rec, Confirmations: confirmations}, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}
	displayResult(res, rec, approval)
	return nil
}

// prepare runs the processor up to a fully validated pending transaction
func prepare(ctx context.Context, a *app, t transfer) (*tx.Processor, tx.PendingTx, error) {
	proc, err := a.factory.NewProcessor(ctx, t.source, t.target, t.action)
	if err != nil {
		return nil, tx.PendingTx{}, err
	}
	ptx, err := proc.Initialize(ctx)
	if err != nil {
		return nil, ptx, err
	}
	ptx, err = proc.UpdateAmount(ctx, ptx, t.amount)
	if err != nil {
		return nil, ptx, err
	}

	if t.feeLevel != "" {
		level, err := tx.ParseFeeLevel(t.feeLevel)
		if err != nil {
			return nil, ptx, err
		}
		custom := tx.NoCustomFee
		if level == tx.FeeLevelCustom {
			custom = t.customFee
		}
		ptx, err = proc.UpdateFeeLevel(ctx, ptx, level, custom)
		if err != nil {
			return nil, ptx, err
		}
	}

	ptx, err = proc.ValidateAll(ctx, ptx)
	if err != nil {
		return nil, ptx, err
	}

	if t.note != "" && ptx.HasOption(tx.OptionDescription) {
		ptx, err = proc.SetOption(ctx, ptx, tx.DescriptionOption{Text: t.note})
		if err != nil {
			return nil, ptx, err
		}
	}
	if t.acceptTerms {
		ptx, err = acceptAgreements(ctx, proc, ptx)
		if err != nil {
			return nil, ptx, err
		}
	}
	return proc, ptx, nil
}

// noteIgnored reports whether --note was given for an engine without a
// description field
func noteIgnored(t transfer, ptx tx.PendingTx) bool {
	return t.note != "" && !ptx.HasOption(tx.OptionDescription)
}

func acceptAgreements(ctx context.Context, proc *tx.Processor, ptx tx.PendingTx) (tx.PendingTx, error) {
	var err error
	if terms, ok := tx.OptionAs[tx.InterestTermsOption](ptx, tx.OptionAgreementInterestTerms); ok && !terms.Accepted {
		ptx, err = proc.SetOption(ctx, ptx, tx.InterestTermsOption{Accepted: true})
		if err != nil {
			return ptx, err
		}
	}
	if lockup, ok := tx.OptionAs[tx.InterestTransferOption](ptx, tx.OptionAgreementInterestTransfer); ok && !lockup.Accepted {
		ptx, err = proc.SetOption(ctx, ptx, tx.InterestTransferOption{Accepted: true, Amount: lockup.Amount})
		if err != nil {
			return ptx, err
		}
	}
	return ptx, nil
}

// describe turns the confirmation options into printable rows
func describe(ptx tx.PendingTx) []confirmation {
	rows := make([]confirmation, 0, len(ptx.Confirmations))
	for _, o := range ptx.Confirmations {
		if row, ok := describeOption(o); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func describeOption(o tx.Option) (confirmation, bool) {
	switch v := o.(type) {
	case tx.FromOption:
		return confirmation{"From", v.Label}, true
	case tx.ToOption:
		return confirmation{"To", v.Label}, true
	case tx.TotalOption:
		return confirmation{"Total", withFiat(v.Amount, v.Fiat)}, true
	case tx.FeedTotalOption:
		return confirmation{"Amount", withFiat(v.Amount, v.FiatAmount) + " + fee " + withFiat(v.Fee, v.FiatFee)}, true
	case tx.ReceiveAmountOption:
		return confirmation{"You receive", withFiat(v.Amount, v.Fiat)}, true
	case tx.NetworkFeeOption:
		return confirmation{"Network fee", withFiat(v.Fee, v.FiatFee)}, true
	case tx.FeeSelectionOption:
		return confirmation{"Fee level", fmt.Sprintf("%s (%s)", v.Selection.SelectedLevel, withFiat(v.FeeAmount, v.FiatFee))}, true
	case tx.FiatFeeOption:
		return confirmation{"Fee", v.Fee.Display()}, true
	case tx.ExchangePriceOption:
		return confirmation{"Price", v.Price.Display()}, true
	case tx.MemoOption:
		if v.Text == "" && !v.Required {
			return confirmation{}, false
		}
		return confirmation{"Memo", v.Text}, true
	case tx.DescriptionOption:
		if v.Text == "" {
			return confirmation{}, false
		}
		return confirmation{"Note", v.Text}, true
	case tx.InterestTermsOption:
		return confirmation{"Rewards terms accepted", yesNo(v.Accepted)}, true
	case tx.InterestTransferOption:
		return confirmation{"Lock-up of " + v.Amount.Display() + " accepted", yesNo(v.Accepted)}, true
	case tx.InvoiceCountdownOption:
		return confirmation{"Quote expires", v.ExpiresAt.Local().Format(time.Kitchen)}, true
	case tx.EstimatedCompletionOption:
		return confirmation{"Arrives", v.Text}, true
	case tx.LargeTransactionWarningOption:
		return confirmation{"Large transaction", "fees may be high"}, true
	case tx.ErrorNoticeOption:
		msg := v.Status.Message()
		if v.Limit != nil {
			msg += " (" + v.Limit.Display() + ")"
		}
		return confirmation{"Error", msg}, true
	default:
		return confirmation{}, false
	}
}

func withFiat(m money.Money, fiat *money.Money) string {
	if fiat == nil {
		return m.Display()
	}
	return fmt.Sprintf("%s (%s)", m.Display(), fiat.String())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func displayConfirmations(ptx tx.PendingTx, rows []confirmation) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    TRANSACTION DETAILS")
	fmt.Println(strings.Repeat("=", 60))

	for _, row := range rows {
		if row.Label == "Error" {
			fmt.Printf("  %-22s %s\n", row.Label+":", color.RedString(row.Value))
			continue
		}
		fmt.Printf("  %-22s %s\n", row.Label+":", color.CyanString(row.Value))
	}
	fmt.Printf("  %-22s %s\n", "Available:", ptx.AvailableBalance.Display())

	status := color.GreenString(ptx.ValidationState.String())
	if ptx.ValidationState != tx.ValidationCanExecute {
		status = color.RedString("%s (%s)", ptx.ValidationState, ptx.ValidationState.Message())
	}
	fmt.Printf("  %-22s %s\n", "Status:", status)
	fmt.Println(strings.Repeat("=", 60))
}

func displayResult(res tx.TxResult, rec journal.Record, approval *tx.ApprovalRequiredError) {
	if approval != nil {
		color.Yellow("\nYour bank needs to approve this payment.")
		fmt.Printf("Open %s to authorise %s\n", color.CyanString(approval.AuthorisationURL), approval.Amount.Display())
		fmt.Printf("Payment ID: %s\n\n", approval.PaymentID)
		return
	}

	label := "Reference"
	if res.IsHashed() {
		label = "Transaction hash"
	}
	printSuccess(color.GreenString("✓ Sent %s", res.Amount.Display()))
	if res.ID() != "" {
		fmt.Printf("%s: %s\n", label, color.CyanString(res.ID()))
	}
	fmt.Printf("History ID: %s\n\n", rec.ID)
}

func askConfirmation(question string) bool {
	fmt.Printf("\n%s [y/N]: ", question)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func readSecondPassword() (string, error) {
	if v := os.Getenv("WALLETCORE_SECOND_PASSWORD"); v != "" {
		return v, nil
	}
	fmt.Print("Second password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read second password: %w", err)
	}
	return string(b), nil
}
