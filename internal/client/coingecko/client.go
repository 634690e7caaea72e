// Package coingecko fetches USD spot prices from the CoinGecko simple price API.
package coingecko

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.coingecko.com"
	defaultTimeout = 10 * time.Second
	pricePath      = "/api/v3/simple/price"
)

// coinIDs maps ticker symbols to CoinGecko coin ids.
var coinIDs = map[string]string{
	"ETH":   "ethereum",
	"WETH":  "weth",
	"POL":   "polygon-ecosystem-token",
	"MATIC": "matic-network",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"DAI":   "dai",
	"WBTC":  "wrapped-bitcoin",
	"ARB":   "arbitrum",
	"OP":    "optimism",
}

// Client manages communication with the CoinGecko API.
type Client struct {
	httpClient *httpClient.HTTPClient
	log        *zap.Logger
}

// NewClient creates a client against baseURL, or the public API when empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	log := logger.Named("coingecko")
	return &Client{
		httpClient: httpClient.NewHTTPClient(
			httpClient.WithBaseURL(baseURL),
			httpClient.WithTimeout(defaultTimeout),
			httpClient.WithRetryConfig(nil),
			httpClient.WithLogger(log),
		),
		log: log,
	}
}

// CoinID returns the CoinGecko id for a ticker symbol.
func CoinID(symbol string) (string, bool) {
	id, ok := coinIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

func (c *Client) Name() string { return "coingecko" }

// USDPrices returns the USD price of each known symbol. Unknown symbols are
// left out of the result rather than failing the call.
func (c *Client) USDPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	idToSymbol := make(map[string]string, len(symbols))
	for _, s := range symbols {
		if id, ok := CoinID(s); ok {
			idToSymbol[id] = strings.ToUpper(s)
		}
	}
	out := make(map[string]decimal.Decimal, len(idToSymbol))
	if len(idToSymbol) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(idToSymbol))
	for id := range idToSymbol {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var resp map[string]map[string]decimal.Decimal
	err := c.httpClient.GetJSON(ctx, pricePath, &resp,
		httpClient.WithQueryParam("ids", strings.Join(ids, ",")),
		httpClient.WithQueryParam("vs_currencies", "usd"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices from CoinGecko: %w", err)
	}

	for id, quotes := range resp {
		price, ok := quotes["usd"]
		if !ok {
			continue
		}
		if sym, ok := idToSymbol[id]; ok {
			out[sym] = price
		}
	}
	c.log.Debug("Fetched prices", zap.Int("requested", len(ids)), zap.Int("returned", len(out)))
	return out, nil
}
