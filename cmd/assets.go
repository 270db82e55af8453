package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"walletcore/pkg/client"
	"walletcore/pkg/money"
)

var assetsCmd = &cobra.Command{
	Use:     "assets",
	Aliases: []string{"balances", "ls"},
	Short:   "List wallet assets and their balances",
	Long: `List the assets your wallet can send, with their total and spendable
balances. With --market, list the tokens the 1Click market knows instead;
those are the assets walletcore can price.

Examples:
  walletcore assets
  walletcore assets --market --chain solana
  walletcore assets --market --symbol USDC`,
	RunE: runAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().Bool("market", false, "List market tokens instead of wallet balances")
	assetsCmd.Flags().String("chain", "", "Filter market tokens by blockchain")
	assetsCmd.Flags().String("symbol", "", "Filter market tokens by symbol")
}

type assetBalance struct {
	Asset      string `json:"asset"`
	Chain      string `json:"chain"`
	Address    string `json:"address"`
	Total      string `json:"total,omitempty"`
	Actionable string `json:"actionable,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runAssets(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balances..."
		s.Start()
	}

	var out any
	if market, _ := cmd.Flags().GetBool("market"); market {
		chain, _ := cmd.Flags().GetString("chain")
		symbol, _ := cmd.Flags().GetString("symbol")
		var tokens []client.Token
		tokens, err = a.oneClick.Tokens(cmd.Context())
		if err == nil {
			out = filterTokens(tokens, chain, symbol)
		}
	} else {
		out = walletBalances(cmd, a)
	}
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}
	switch v := out.(type) {
	case []client.Token:
		displayTokens(v)
	case []assetBalance:
		displayBalances(v)
	}
	return nil
}

func walletBalances(cmd *cobra.Command, a *app) []assetBalance {
	assets := a.chains.Assets()
	out := make([]assetBalance, 0, len(assets))
	for _, asset := range assets {
		row := assetBalance{Asset: asset.Code, Chain: asset.Chain}
		acct, err := a.chains.Account(asset)
		if err != nil {
			row.Error = err.Error()
			out = append(out, row)
			continue
		}
		row.Address = acct.Address
		// one RPC round trip per balance; signers do not cache
		total, err := acct.Balance(cmd.Context())
		var actionable money.Money
		if err == nil {
			actionable, err = acct.ActionableBalance(cmd.Context())
		}
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Total = total.Display()
			row.Actionable = actionable.Display()
		}
		out = append(out, row)
	}
	return out
}

func filterTokens(tokens []client.Token, chain, symbol string) []client.Token {
	filtered := make([]client.Token, 0, len(tokens))
	for _, token := range tokens {
		if chain != "" && !strings.EqualFold(token.Blockchain, chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(symbol)) {
			continue
		}
		filtered = append(filtered, token)
	}
	return filtered
}

func displayBalances(rows []assetBalance) {
	if len(rows) == 0 {
		fmt.Println("\nNo wallets configured. Add chains to .walletcore.yaml.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                WALLET BALANCES")
	fmt.Println(strings.Repeat("=", 90))

	for _, row := range rows {
		address := row.Address
		if len(address) > 40 {
			address = address[:37] + "..."
		}
		if row.Error != "" {
			fmt.Printf("  %-8s  %-10s  %s\n", color.YellowString(row.Asset), row.Chain, color.RedString(row.Error))
			continue
		}
		fmt.Printf("  %-8s  %-10s  %-24s  %-24s  %s\n",
			color.YellowString(row.Asset),
			row.Chain,
			row.Total,
			color.CyanString("spendable "+row.Actionable),
			color.HiBlackString(address))
	}
	fmt.Println(strings.Repeat("=", 90) + "\n")
}

func displayTokens(tokens []client.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                MARKET TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	byChain := make(map[string][]client.Token)
	for _, token := range tokens {
		byChain[token.Blockchain] = append(byChain[token.Blockchain], token)
	}
	chains := make([]string, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))
		for _, token := range byChain[chain] {
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(token.AssetID))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
