package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/parser"
	"walletcore/pkg/pricing"
)

var priceCmd = &cobra.Command{
	Use:   "price <asset> [fiat]",
	Short: "Show the price of an asset",
	Long: `Show the market rate of an asset in fiat, the custodial sell quote for a
volume, or the price a tier schedule gives for a volume.

Examples:
  walletcore price BTC
  walletcore price ETH EUR --amount 2.5
  walletcore price BTC --quote --volume 0.75
  walletcore price BTC --tiers "0.5:60000,2:59000" --volume 1.25`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().String("amount", "", "Convert this amount of the asset")
	priceCmd.Flags().Bool("quote", false, "Ask the custodial backend for a tiered sell quote")
	priceCmd.Flags().String("tiers", "", "Price a volume against a volume:price schedule instead")
	priceCmd.Flags().String("volume", "1", "Volume to price with --quote or --tiers")
}

type priceOutput struct {
	Asset  string `json:"asset"`
	Fiat   string `json:"fiat,omitempty"`
	Volume string `json:"volume,omitempty"`
	Price  string `json:"price"`
	Value  string `json:"value,omitempty"`
	Source string `json:"source"`
}

func runPrice(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	tiers, _ := cmd.Flags().GetString("tiers")
	volumeFlag, _ := cmd.Flags().GetString("volume")

	asset, ok := money.Lookup(parser.NormalizeTokenSymbol(args[0]))
	if !ok {
		return fmt.Errorf("unsupported asset %s", args[0])
	}
	volume, err := decimal.NewFromString(volumeFlag)
	if err != nil {
		return fmt.Errorf("invalid volume %q: %w", volumeFlag, err)
	}

	// a tier schedule is priced locally
	if tiers != "" {
		out, err := priceTiers(asset, tiers, volume)
		if err != nil {
			return err
		}
		return printPrice(out, jsonOutput)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fiat := a.cfg.UserFiat()
	if len(args) > 1 {
		fiat, err = money.Fiat(strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching price..."
		s.Start()
	}
	var out priceOutput
	if quote, _ := cmd.Flags().GetBool("quote"); quote {
		out, err = priceQuote(cmd, a, asset, fiat, volume)
	} else {
		amount, _ := cmd.Flags().GetString("amount")
		out, err = priceRate(cmd, a, asset, fiat, amount)
	}
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}
	return printPrice(out, jsonOutput)
}

func priceTiers(asset money.Currency, schedule string, volume decimal.Decimal) (priceOutput, error) {
	tiers, err := parser.ParseTierSchedule(schedule)
	if err != nil {
		return priceOutput{}, err
	}
	interp, err := pricing.New(tiers, pricing.DefaultScale)
	if err != nil {
		return priceOutput{}, err
	}
	price, err := interp.PriceAt(volume)
	if err != nil {
		return priceOutput{}, err
	}
	return priceOutput{
		Asset:  asset.Code,
		Volume: volume.String(),
		Price:  price.String(),
		Source: "tiers",
	}, nil
}

func priceQuote(cmd *cobra.Command, a *app, asset, fiat money.Currency, volume decimal.Decimal) (priceOutput, error) {
	quotes := custodial.NewTieredQuoteSource(a.custody)
	q, err := quotes.GetQuote(cmd.Context(), asset, fiat, custodial.ActionSell, money.FromMajor(asset, volume))
	if err != nil {
		return priceOutput{}, err
	}
	return priceOutput{
		Asset:  asset.Code,
		Fiat:   fiat.Code,
		Volume: volume.String(),
		Price:  q.Rate.String(),
		Value:  q.Fee.Display() + " fee",
		Source: "quote " + q.ID,
	}, nil
}

func priceRate(cmd *cobra.Command, a *app, asset, fiat money.Currency, amount string) (priceOutput, error) {
	rate, err := a.rates.Rate(cmd.Context(), asset, fiat)
	if err != nil {
		return priceOutput{}, err
	}
	out := priceOutput{
		Asset:  asset.Code,
		Fiat:   fiat.Code,
		Price:  rate.Price().Display(),
		Source: "market",
	}
	if amount != "" {
		m, err := money.Parse(asset, amount)
		if err != nil {
			return priceOutput{}, err
		}
		value, err := rate.Convert(m)
		if err != nil {
			return priceOutput{}, err
		}
		out.Volume = m.Display()
		out.Value = value.String()
	}
	return out, nil
}

func printPrice(out priceOutput, jsonOutput bool) error {
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-8s %s\n", "Asset:", color.YellowString(out.Asset))
	if out.Volume != "" {
		fmt.Printf("  %-8s %s\n", "Volume:", out.Volume)
	}
	fmt.Printf("  %-8s %s\n", "Price:", color.GreenString(out.Price))
	if out.Value != "" {
		fmt.Printf("  %-8s %s\n", "Value:", out.Value)
	}
	fmt.Printf("  %-8s %s\n\n", "Source:", color.HiBlackString(out.Source))
	return nil
}
