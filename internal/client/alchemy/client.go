// Package alchemy is a JSON-RPC client for the Alchemy enhanced APIs used by the
// wallet: asset transfers, ERC-20 balances and token metadata.
package alchemy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 10
)

var (
	// ErrUnsupportedChain is returned for chains without an Alchemy slug.
	ErrUnsupportedChain = errors.New("alchemy: unsupported chain")
	// ErrMissingAPIKey is returned when the client was built without a key.
	ErrMissingAPIKey = errors.New("alchemy: API key not configured")
)

// RPCError is a JSON-RPC error object returned in a 200 response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("alchemy rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Client calls Alchemy on the network picked per request by chain id.
type Client struct {
	apiKey   string
	reg      *network.Registry
	http     *httpClient.HTTPClient
	endpoint func(slug, apiKey string) string
	limiter  *rate.Limiter
	log      *zap.Logger
	ids      atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides how the per-network URL is built.
func WithEndpoint(fn func(slug, apiKey string) string) Option {
	return func(c *Client) { c.endpoint = fn }
}

// WithRateLimit sets the client-side request budget in requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1)) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// DefaultEndpoint is https://{slug}.g.alchemy.com/v2/{key}.
func DefaultEndpoint(slug, apiKey string) string {
	return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", slug, apiKey)
}

// NewClient builds a client. Retries are left to the caller's query policy.
func NewClient(apiKey string, reg *network.Registry, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		reg:      reg,
		endpoint: DefaultEndpoint,
		limiter:  rate.NewLimiter(defaultRateLimit, defaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log, "alchemy")
	c.http = httpClient.NewHTTPClient(
		httpClient.WithTimeout(defaultTimeout),
		httpClient.WithRetryConfig(nil),
		httpClient.WithLogger(c.log),
		httpClient.WithMiddleware(httpClient.LoggingMiddleware()),
		httpClient.WithMiddleware(httpClient.RateLimitMiddleware(c.limiter)),
	)
	return c
}

// Supports reports whether chainID has an Alchemy endpoint.
func (c *Client) Supports(chainID int64) bool {
	_, ok := c.reg.AlchemySlug(chainID)
	return ok
}

func (c *Client) call(ctx context.Context, chainID int64, method string, params []any, result any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	slug, ok := c.reg.AlchemySlug(chainID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.ids.Add(1),
		Method:  method,
		Params:  params,
	}
	var resp rpcResponse
	if err := c.http.PostJSON(ctx, c.endpoint(slug, c.apiKey), req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return fmt.Errorf("%s: empty result", method)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// GetAssetTransfers fetches one page of alchemy_getAssetTransfers.
func (c *Client) GetAssetTransfers(ctx context.Context, chainID int64, req types.AssetTransfersRequest) (types.TransfersPage, error) {
	var page types.TransfersPage
	if err := c.call(ctx, chainID, "alchemy_getAssetTransfers", []any{req}, &page); err != nil {
		return types.TransfersPage{}, err
	}
	if page.Transfers == nil {
		page.Transfers = []types.Transfer{}
	}
	c.log.Debug("Fetched asset transfers",
		zap.Int64("chain_id", chainID),
		zap.Int("count", len(page.Transfers)),
		zap.Bool("has_more", page.HasMore()))
	return page, nil
}

// GetTokenBalances returns the ERC-20 balances of address, zero balances included.
func (c *Client) GetTokenBalances(ctx context.Context, chainID int64, address string) (types.TokenBalancesResult, error) {
	var res types.TokenBalancesResult
	if err := c.call(ctx, chainID, "alchemy_getTokenBalances", []any{address, "erc20"}, &res); err != nil {
		return types.TokenBalancesResult{}, err
	}
	return res, nil
}

// GetTokenMetadata returns name, symbol, decimals and logo of an ERC-20 contract.
func (c *Client) GetTokenMetadata(ctx context.Context, chainID int64, contract string) (types.TokenMetadata, error) {
	var md types.TokenMetadata
	if err := c.call(ctx, chainID, "alchemy_getTokenMetadata", []any{contract}, &md); err != nil {
		return types.TokenMetadata{}, err
	}
	return md, nil
}
