package server

import (
	"net/http"
	"strings"

	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CreateAccountRequest represents the request body for adding a wallet account
type CreateAccountRequest struct {
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address" binding:"required"`
	AccountType string `json:"accountType"`
	Activate    bool   `json:"activate"`
}

type SetActiveAccountRequest struct {
	ID string `json:"id" binding:"required"`
}

// CreateCustomNetworkRequest represents the request body for adding a custom network
type CreateCustomNetworkRequest struct {
	ChainID          int64  `json:"chainId" binding:"required"`
	Name             string `json:"name" binding:"required"`
	RPCURL           string `json:"rpcUrl" binding:"required"`
	Currency         string `json:"currency" binding:"required"`
	BlockExplorerURL string `json:"blockExplorerUrl"`
	Type             string `json:"type"`
}

func (s *Server) ListAccounts(c *gin.Context) {
	sendList(c, s.deps.State.Get().Accounts)
}

// CreateAccount adds a wallet account with a generated id.
func (s *Server) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account := types.WalletAccount{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Address:     req.Address,
		CreatedAt:   s.now().UnixMilli(),
		AccountType: types.AccountType(req.AccountType),
	}
	if err := types.ValidateAccount(account); err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	account.Address = common.HexToAddress(account.Address).Hex()

	for _, a := range s.deps.State.Get().Accounts {
		if strings.EqualFold(a.Address, account.Address) {
			sendError(c, http.StatusConflict, "Account already exists", errors.Errorf("duplicate address %s", account.Address))
			return
		}
	}

	s.deps.State.AddAccount(account)
	if req.Activate {
		s.deps.State.SetActiveAccountByID(account.ID)
	}
	sendSuccess(c, http.StatusCreated, account)
}

func (s *Server) SetActiveAccount(c *gin.Context) {
	var req SetActiveAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := s.deps.State.Get().FindAccount(req.ID); !ok {
		sendError(c, http.StatusNotFound, "Account not found", errors.Errorf("account %s not found", req.ID))
		return
	}
	s.deps.State.SetActiveAccountByID(req.ID)
	sendSuccess(c, http.StatusOK, s.deps.State.Get().ActiveAccount)
}

func (s *Server) ListCustomNetworks(c *gin.Context) {
	sendList(c, s.deps.State.Get().CustomNetworks)
}

// CreateCustomNetwork adds a user-defined network. Chain ids of predefined or
// existing custom networks are rejected.
func (s *Server) CreateCustomNetwork(c *gin.Context) {
	var req CreateCustomNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	custom := network.CustomNetwork{
		ID:               uuid.New().String(),
		ChainID:          req.ChainID,
		Name:             strings.TrimSpace(req.Name),
		RPCURL:           strings.TrimSpace(req.RPCURL),
		Currency:         strings.ToUpper(strings.TrimSpace(req.Currency)),
		BlockExplorerURL: strings.TrimSpace(req.BlockExplorerURL),
		Type:             network.Type(req.Type),
	}
	if err := network.ValidateCustomNetwork(custom); err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	if _, ok := s.deps.Registry.Chain(custom.ChainID); ok {
		sendError(c, http.StatusConflict, "Chain is already predefined", errors.Errorf("chain %d is predefined", custom.ChainID))
		return
	}
	for _, existing := range s.deps.State.Get().CustomNetworks {
		if existing.ChainID == custom.ChainID {
			sendError(c, http.StatusConflict, "Custom network already exists", errors.Errorf("chain %d already added", custom.ChainID))
			return
		}
	}

	s.deps.State.AddCustomNetwork(custom)
	created, _ := s.deps.State.Get().FindCustomNetwork(custom.ID)
	sendSuccess(c, http.StatusCreated, created)
}

func (s *Server) DeleteCustomNetwork(c *gin.Context) {
	id := c.Param("id")
	if !s.deps.State.RemoveCustomNetwork(id, s.deps.Registry) {
		sendError(c, http.StatusNotFound, "Custom network not found", errors.Errorf("custom network %s not found", id))
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Custom network deleted")
}
