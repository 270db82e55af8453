package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"walletcore/config"
	"walletcore/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "walletcore",
	Short: "A multi-asset wallet for self custody, trading and bank transfers",
	Long: `walletcore moves funds between self custody wallets, custodial trading and
rewards accounts, the fiat wallet and a linked bank. Every transfer is
priced, validated and confirmed before anything is signed or ordered.

Examples:
  walletcore send 0.5 ETH to 0x1234...abcd
  walletcore withdraw 100 USDC to 0x1234...abcd --from trading
  walletcore sell 0.1 BTC for EUR
  walletcore bank deposit 250 EUR
  walletcore interest deposit 1 ETH --accept-terms
  walletcore history`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		return logger.Init(cfg.Env, level)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Skip confirmation prompt")
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
