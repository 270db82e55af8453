package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
)

// Token is a 1Click asset reduced to what pricing needs
type Token struct {
	Symbol     string
	Blockchain string
	AssetID    string
	Decimals   int32
}

// QuoteRequest asks for a dry EXACT_INPUT quote. Amount is in the
// smallest unit of the origin asset.
type QuoteRequest struct {
	OriginAsset      string
	DestinationAsset string
	Amount           string
	Recipient        string
	RefundTo         string
}

// Quote holds the formatted amounts of a quote
type Quote struct {
	AmountIn  string
	AmountOut string
}

// OneClickClient wraps the 1Click SDK
type OneClickClient struct {
	client *oneclick.APIClient
	token  string

	mu     sync.Mutex
	tokens []Token
}

// NewOneClickClient creates a new 1Click API client. An empty baseURL
// keeps the SDK default.
func NewOneClickClient(jwtToken, baseURL string, timeout time.Duration) *OneClickClient {
	cfg := oneclick.NewConfiguration()
	if baseURL != "" {
		cfg.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &OneClickClient{
		client: oneclick.NewAPIClient(cfg),
		token:  jwtToken,
	}
}

func (c *OneClickClient) authed(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// Tokens retrieves all supported tokens. The list is fetched once per
// client.
func (c *OneClickClient) Tokens(ctx context.Context) ([]Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens != nil {
		return c.tokens, nil
	}

	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authed(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	tokens := make([]Token, 0, len(resp))
	for _, t := range resp {
		tokens = append(tokens, Token{
			Symbol:     t.GetSymbol(),
			Blockchain: t.GetBlockchain(),
			AssetID:    t.GetAssetId(),
			Decimals:   int32(t.GetDecimals()),
		})
	}
	c.tokens = tokens
	return tokens, nil
}

// FindToken looks a symbol up, preferring the given chain when set
func (c *OneClickClient) FindToken(ctx context.Context, symbol, chain string) (Token, error) {
	tokens, err := c.Tokens(ctx)
	if err != nil {
		return Token{}, err
	}
	return findToken(tokens, symbol, chain)
}

func findToken(tokens []Token, symbol, chain string) (Token, error) {
	var fallback *Token
	for i, t := range tokens {
		if !strings.EqualFold(t.Symbol, symbol) {
			continue
		}
		if chain == "" || strings.EqualFold(t.Blockchain, chain) {
			return t, nil
		}
		if fallback == nil {
			fallback = &tokens[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	if chain != "" {
		return Token{}, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
	}
	return Token{}, fmt.Errorf("token '%s' not found", symbol)
}

// DryQuote prices a swap without creating a deposit address
func (c *OneClickClient) DryQuote(ctx context.Context, req QuoteRequest) (Quote, error) {
	refundTo := req.RefundTo
	if refundTo == "" {
		refundTo = req.Recipient
	}

	quoteReq := oneclick.NewQuoteRequest(
		true,
		"EXACT_INPUT",
		100, // 1%
		req.OriginAsset,
		"ORIGIN_CHAIN",
		req.DestinationAsset,
		req.Amount,
		refundTo,
		"ORIGIN_CHAIN",
		req.Recipient,
		"DESTINATION_CHAIN",
		time.Now().Add(10*time.Minute),
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authed(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return Quote{}, apiError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Quote{}, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return Quote{}, fmt.Errorf("empty quote response")
	}

	details := resp.GetQuote()
	return Quote{
		AmountIn:  details.GetAmountInFormatted(),
		AmountOut: details.GetAmountOutFormatted(),
	}, nil
}

// apiError extracts the message of a failed call when the body has one
func apiError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return fmt.Errorf("failed to get quote from API (status: %d): %w", httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errs, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errs)
		}
	}
	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(body))
}
