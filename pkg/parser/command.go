package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"walletcore/pkg/pricing"
	"walletcore/pkg/types"
)

// <action> <amount> <asset> [to|for <target>] [memo <memo>]
var transferPattern = regexp.MustCompile(`(?i)^(send|withdraw|sell|deposit|swap)\s+(\d+\.?\d*)\s+([A-Za-z0-9.]+)(?:\s+(?:to|for|into)\s+(\S+))?(?:\s+memo\s+(\S+))?$`)

// ParseTransferCommand parses a short transfer command
// Examples:
//   - "send 0.5 BTC to bc1q..."
//   - "withdraw 100 GBP to bank-1"
//   - "sell 0.1 BTC for USD"
//   - "swap 0.1 BTC for ETH"
//   - "send 10 XLM to GABC... memo 12345"
func ParseTransferCommand(command string) (*types.TransferRequest, error) {
	command = strings.Join(strings.Fields(command), " ")

	matches := transferPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid command format. Expected: '<send|withdraw|sell|deposit|swap> <amount> <asset> [to <target>]' (e.g., 'send 0.5 BTC to bc1q...')")
	}

	req := &types.TransferRequest{
		Action: strings.ToLower(matches[1]),
		Amount: matches[2],
		Asset:  NormalizeTokenSymbol(matches[3]),
		Target: matches[4],
		Memo:   matches[5],
	}
	if err := ValidateTransferRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ValidateTransferRequest validates that a request has all required fields
func ValidateTransferRequest(req *types.TransferRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	switch req.Action {
	case "send", "withdraw", "swap":
		if req.Target == "" {
			return fmt.Errorf("%s needs a target", req.Action)
		}
	case "sell", "deposit":
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"WBTC": "BTC",
		"WETH": "ETH",
		"WSOL": "SOL",
		"XBT":  "BTC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}

// ParseTierSchedule reads "volume:price" pairs separated by commas, e.g.
// "100:10,200:25"
func ParseTierSchedule(s string) ([]pricing.Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty schedule", pricing.ErrInvalidTierData)
	}

	var tiers []pricing.Tier
	for _, pair := range strings.Split(s, ",") {
		volume, price, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not volume:price", pricing.ErrInvalidTierData, pair)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(volume))
		if err != nil {
			return nil, fmt.Errorf("%w: volume %q: %v", pricing.ErrInvalidTierData, volume, err)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, fmt.Errorf("%w: price %q: %v", pricing.ErrInvalidTierData, price, err)
		}
		tiers = append(tiers, pricing.Tier{Volume: v, Price: p})
	}
	return tiers, nil
}
