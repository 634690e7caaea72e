package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/services"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// TokensResponse lists ERC-20 holdings with their total USD value
type TokensResponse struct {
	Object     string               `json:"object"`
	ChainID    int64                `json:"chainId"`
	Address    string               `json:"address"`
	Data       []types.TokenBalance `json:"data"`
	TotalValue decimal.Decimal      `json:"totalValue"`
}

// PriceResponse is a USD spot price
type PriceResponse struct {
	Symbol string          `json:"symbol"`
	USD    decimal.Decimal `json:"usd"`
}

// target resolves the address and network of an asset request. Both default to
// the active account and the selected network; address and chainId query
// parameters override them. It writes the error response itself.
func (s *Server) target(c *gin.Context) (string, network.Network, bool) {
	st := s.deps.State.Get()

	address := c.Query("address")
	if address == "" && st.ActiveAccount != nil {
		address = st.ActiveAccount.Address
	}
	if address == "" {
		sendError(c, http.StatusBadRequest, "No active account", nil)
		return "", network.Network{}, false
	}
	if err := types.ValidateAddress(address); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid address", err)
		return "", network.Network{}, false
	}

	n := st.SelectedNetwork
	if raw := c.Query("chainId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			sendError(c, http.StatusBadRequest, "Invalid chainId", err)
			return "", network.Network{}, false
		}
		resolved, ok := s.deps.Registry.Resolve(id, st.CustomNetworks)
		if !ok {
			sendError(c, http.StatusBadRequest, "Unknown network", errors.Errorf("chain %d not found", id))
			return "", network.Network{}, false
		}
		n = resolved
	}
	return address, n, true
}

// GetTokens returns the non-zero ERC-20 balances of an address.
func (s *Server) GetTokens(c *gin.Context) {
	if s.deps.Tokens == nil {
		sendError(c, http.StatusServiceUnavailable, "Token balances are not configured", nil)
		return
	}
	address, n, ok := s.target(c)
	if !ok {
		return
	}

	balances, err := s.deps.Tokens.Balances(c.Request.Context(), n.ChainID(), address)
	if err != nil {
		handleServiceError(c, errors.Wrapf(err, "chain %d", n.ChainID()), "Failed to fetch token balances")
		return
	}
	sendSuccess(c, http.StatusOK, TokensResponse{
		Object:     "list",
		ChainID:    n.ChainID(),
		Address:    address,
		Data:       balances,
		TotalValue: services.PortfolioValue(balances),
	})
}

// GetBalance returns the native balance with its USD value when known.
func (s *Server) GetBalance(c *gin.Context) {
	if s.deps.Balances == nil {
		sendError(c, http.StatusServiceUnavailable, "Native balances are not configured", nil)
		return
	}
	address, n, ok := s.target(c)
	if !ok {
		return
	}

	b, err := s.deps.Balances.BalanceWithUSD(c.Request.Context(), n, address)
	if err != nil {
		handleServiceError(c, errors.Wrapf(err, "chain %d", n.ChainID()), "Failed to fetch balance")
		return
	}
	sendSuccess(c, http.StatusOK, b)
}

func (s *Server) GetPrice(c *gin.Context) {
	if s.deps.Prices == nil {
		sendError(c, http.StatusServiceUnavailable, "Prices are not configured", nil)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	price, err := s.deps.Prices.USDPrice(c.Request.Context(), symbol)
	if err != nil {
		handleServiceError(c, err, "Failed to fetch price")
		return
	}
	sendSuccess(c, http.StatusOK, PriceResponse{Symbol: symbol, USD: price})
}
