package server

import (
	"net/http"

	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// SelectNetworkRequest selects a predefined chain by ChainID or a custom network by ID.
type SelectNetworkRequest struct {
	ChainID         int64  `json:"chainId"`
	CustomNetworkID string `json:"customNetworkId"`
}

type NetworkTypeRequest struct {
	Type string `json:"type" binding:"required"`
}

type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

type LockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// GasSponsorshipRequest sets the flag, or toggles it when Enabled is omitted.
type GasSponsorshipRequest struct {
	Enabled *bool `json:"enabled"`
}

// GetState returns the full UI state.
func (s *Server) GetState(c *gin.Context) {
	sendSuccess(c, http.StatusOK, s.deps.State.Get())
}

// SelectNetwork switches the selected network.
func (s *Server) SelectNetwork(c *gin.Context) {
	var req SelectNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	st := s.deps.State.Get()
	var (
		n  network.Network
		ok bool
	)
	switch {
	case req.CustomNetworkID != "":
		var custom network.CustomNetwork
		custom, ok = st.FindCustomNetwork(req.CustomNetworkID)
		n = network.Custom(custom)
	case req.ChainID > 0:
		n, ok = s.deps.Registry.Resolve(req.ChainID, st.CustomNetworks)
	default:
		sendError(c, http.StatusBadRequest, "chainId or customNetworkId is required", nil)
		return
	}
	if !ok {
		sendError(c, http.StatusBadRequest, "Unknown network", errors.Errorf("chain %d / custom %q not found", req.ChainID, req.CustomNetworkID))
		return
	}
	if n.Type() == network.TypeMainnet && !s.cfg.AllowMainnet {
		sendError(c, http.StatusBadRequest, "Mainnet networks are disabled", nil)
		return
	}

	if n.Type() != st.NetworkType {
		s.deps.State.SetNetworkType(n.Type())
	}
	s.deps.State.SetSelectedNetwork(n)
	sendSuccess(c, http.StatusOK, s.deps.State.Get().SelectedNetwork)
}

// SetNetworkType switches between mainnet and testnet and selects the preferred
// chain of the new type, or its default.
func (s *Server) SetNetworkType(c *gin.Context) {
	var req NetworkTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	t, err := network.ParseType(req.Type)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid network type", err)
		return
	}
	if t == network.TypeMainnet && !s.cfg.AllowMainnet {
		sendError(c, http.StatusBadRequest, "Mainnet networks are disabled", nil)
		return
	}

	st := s.deps.State.Get()
	s.deps.State.SetNetworkType(t)

	next := s.deps.Registry.DefaultFor(t)
	if id, ok := st.PreferredNetworks[t]; ok {
		if n, found := s.deps.Registry.Resolve(id, st.CustomNetworks); found && n.Type() == t {
			next = n
		}
	}
	if !next.Equal(st.SelectedNetwork) {
		s.deps.State.SetSelectedNetwork(next)
	}
	sendSuccess(c, http.StatusOK, s.deps.State.Get())
}

func (s *Server) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	theme, err := types.ParseTheme(req.Theme)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid theme", err)
		return
	}
	s.deps.State.SetTheme(theme)
	sendSuccess(c, http.StatusOK, gin.H{"theme": theme})
}

func (s *Server) SetLock(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s.deps.State.SetWalletLocked(*req.Locked)
	sendSuccess(c, http.StatusOK, gin.H{"locked": *req.Locked})
}

func (s *Server) SetGasSponsorship(c *gin.Context) {
	var req GasSponsorshipRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.Enabled == nil {
		s.deps.State.ToggleGasSponsorship()
	} else {
		s.deps.State.SetGasSponsorshipEnabled(*req.Enabled)
	}
	sendSuccess(c, http.StatusOK, gin.H{"enabled": s.deps.State.Get().GasSponsorshipEnabled})
}
