package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"walletcore/config"
	"walletcore/pkg/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show executed transactions",
	Long: `Show the transactions executed from this machine, newest first, or the
details of one of them.

Examples:
  walletcore history
  walletcore history --status awaiting_approval
  walletcore history 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("status", "", "Filter by status: completed, awaiting_approval or failed")
	historyCmd.Flags().Int("limit", 20, "Show at most this many entries (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	j, err := journal.Open(config.Get().Journal.Path)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		r, err := j.Get(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(r, "", "  ")
			fmt.Println(string(jsonData))
			return nil
		}
		displayRecord(r)
		return nil
	}

	var records []journal.Record
	switch journal.Status(status) {
	case "":
		records = j.List(nil)
	case journal.StatusCompleted, journal.StatusAwaitingApproval, journal.StatusFailed:
		records = j.ByStatus(journal.Status(status))
	default:
		return fmt.Errorf("unknown status %q", status)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}
	displayHistory(records, j.Count())
	return nil
}

func statusString(s journal.Status) string {
	switch s {
	case journal.StatusCompleted:
		return color.GreenString(string(s))
	case journal.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayHistory(records []journal.Record, total int) {
	if len(records) == 0 {
		fmt.Println("\nNo transactions yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                   HISTORY")
	fmt.Println(strings.Repeat("=", 90))

	for _, r := range records {
		fmt.Printf("  %s  %-8s  %-24s  %-18s  %s\n",
			color.HiBlackString(r.Timestamp.Local().Format("2006-01-02 15:04")),
			r.Action,
			r.Amount,
			statusString(r.Status),
			color.HiBlackString(shortID(r.ID)))
	}

	fmt.Println(strings.Repeat("=", 90))
	fmt.Printf("\nShowing %d of %d\n\n", len(records), total)
}

func displayRecord(r journal.Record) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        TRANSACTION")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("  %-14s %s\n", "ID:", r.ID)
	fmt.Printf("  %-14s %s\n", "Time:", r.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  %-14s %s via %s\n", "Action:", r.Action, r.Engine)
	fmt.Printf("  %-14s %s\n", "From:", r.Source)
	fmt.Printf("  %-14s %s\n", "To:", r.Target)
	fmt.Printf("  %-14s %s\n", "Amount:", color.CyanString(r.Amount))
	if r.Fee != "" {
		fmt.Printf("  %-14s %s\n", "Fee:", r.Fee)
	}
	fmt.Printf("  %-14s %s\n", "Status:", statusString(r.Status))
	if r.TxID != "" {
		label := "Reference:"
		if r.Hashed {
			label = "Hash:"
		}
		fmt.Printf("  %-14s %s\n", label, r.TxID)
	}
	if r.ApprovalURL != "" {
		fmt.Printf("  %-14s %s\n", "Approve at:", color.CyanString(r.ApprovalURL))
	}
	if r.Error != "" {
		fmt.Printf("  %-14s %s\n", "Error:", color.RedString(r.Error))
	}
	fmt.Println(strings.Repeat("=", 70))
}
