package coinmarketcap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://pro-api.coinmarketcap.com"
	defaultTimeout = 10 * time.Second
	quotesPath     = "/v2/cryptocurrency/quotes/latest"
	apiKeyHeader   = "X-CMC_PRO_API_KEY"
	usd            = "USD"
)

// Client is the fallback USD price source.
type Client struct {
	apiKey string
	http   *httpClient.HTTPClient
	log    *zap.Logger
}

// NewClient creates a CoinMarketCap client. An empty baseURL selects the public pro API.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	log := logger.Named("coinmarketcap")
	return &Client{
		apiKey: apiKey,
		http: httpClient.NewHTTPClient(
			httpClient.WithBaseURL(baseURL),
			httpClient.WithTimeout(defaultTimeout),
			httpClient.WithLogger(log),
		),
		log: log,
	}
}

// Quote is the price of a listing in one fiat currency.
type Quote struct {
	Price       decimal.Decimal `json:"price"`
	LastUpdated string          `json:"last_updated"`
}

// Listing is one asset matching a queried symbol.
type Listing struct {
	ID     int              `json:"id"`
	Name   string           `json:"name"`
	Symbol string           `json:"symbol"`
	Quote  map[string]Quote `json:"quote"`
}

// Status is the envelope every CoinMarketCap response carries.
type Status struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	CreditCount  int    `json:"credit_count"`
}

// QuotesResponse maps each requested symbol to its listings, best ranked first.
type QuotesResponse struct {
	Status Status               `json:"status"`
	Data   map[string][]Listing `json:"data"`
}

// Error is a failure reported inside a 200 response envelope.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("coinmarketcap: %s", e.Message)
}

// GetLatestQuotes fetches the latest quotes for symbols, converted to each of convert.
func (c *Client) GetLatestQuotes(ctx context.Context, symbols []string, convert []string) (*QuotesResponse, error) {
	if len(symbols) == 0 {
		return nil, errors.New("coinmarketcap: no symbols requested")
	}

	opts := []httpClient.RequestOption{
		httpClient.WithQueryParam("symbol", strings.ToUpper(strings.Join(symbols, ","))),
		httpClient.WithHeader(apiKeyHeader, c.apiKey),
	}
	if len(convert) > 0 {
		opts = append(opts, httpClient.WithQueryParam("convert", strings.ToUpper(strings.Join(convert, ","))))
	}

	var out QuotesResponse
	if err := c.http.GetJSON(ctx, quotesPath, &out, opts...); err != nil {
		return nil, fmt.Errorf("coinmarketcap quotes: %w", err)
	}
	if out.Status.ErrorCode != 0 {
		return nil, &Error{
			Code:    out.Status.ErrorCode,
			Message: fmt.Sprintf("API error %d: %s", out.Status.ErrorCode, out.Status.ErrorMessage),
		}
	}
	c.log.Debug("Fetched quotes", zap.Strings("symbols", symbols), zap.Int("credits", out.Status.CreditCount))
	return &out, nil
}

func (c *Client) Name() string { return "coinmarketcap" }

// USDPrices returns the USD price of every symbol CoinMarketCap knows about.
// Without an API key it knows none.
func (c *Client) USDPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(symbols))
	if c.apiKey == "" || len(symbols) == 0 {
		return out, nil
	}

	resp, err := c.GetLatestQuotes(ctx, symbols, []string{usd})
	if err != nil {
		return nil, err
	}
	for symbol, listings := range resp.Data {
		if len(listings) == 0 {
			continue
		}
		if q, ok := listings[0].Quote[usd]; ok {
			out[strings.ToUpper(symbol)] = q.Price
		}
	}
	return out, nil
}
