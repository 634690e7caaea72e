package state

import (
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/types"
)

// State is everything the UI renders from. Values handed out by Store are copies.
type State struct {
	SelectedNetwork       network.Network         `json:"selectedNetwork"`
	NetworkType           network.Type            `json:"networkType"`
	PreferredNetworks     map[network.Type]int64  `json:"preferredNetworks"`
	Accounts              []types.WalletAccount   `json:"accounts"`
	ActiveAccount         *types.WalletAccount    `json:"activeAccount"`
	HasAccounts           bool                    `json:"hasAccounts"`
	CustomNetworks        []network.CustomNetwork `json:"customNetworks"`
	Theme                 types.Theme             `json:"theme"`
	WalletLocked          bool                    `json:"walletLocked"`
	GasSponsorshipEnabled bool                    `json:"gasSponsorshipEnabled"`
	NetworkOnline         bool                    `json:"networkOnline"`
	BalanceVersion        uint64                  `json:"balanceVersion"`
	Ready                 bool                    `json:"ready"`
}

// Defaults is the state used before hydration and whenever hydration fails.
func Defaults(reg *network.Registry, t network.Type) State {
	if t == "" {
		t = network.TypeMainnet
	}
	return State{
		SelectedNetwork:   reg.DefaultFor(t),
		NetworkType:       t,
		PreferredNetworks: map[network.Type]int64{},
		Accounts:          []types.WalletAccount{},
		CustomNetworks:    []network.CustomNetwork{},
		Theme:             types.ThemeSystem,
		NetworkOnline:     true,
	}
}

// Clone deep-copies s.
func (s State) Clone() State {
	out := s
	if s.PreferredNetworks != nil {
		out.PreferredNetworks = make(map[network.Type]int64, len(s.PreferredNetworks))
		for k, v := range s.PreferredNetworks {
			out.PreferredNetworks[k] = v
		}
	}
	if s.Accounts != nil {
		out.Accounts = append([]types.WalletAccount{}, s.Accounts...)
	}
	if s.ActiveAccount != nil {
		a := *s.ActiveAccount
		out.ActiveAccount = &a
	}
	if s.CustomNetworks != nil {
		out.CustomNetworks = append([]network.CustomNetwork{}, s.CustomNetworks...)
	}
	return out
}

// ActiveAccountID is "" when no account is active.
func (s State) ActiveAccountID() string {
	if s.ActiveAccount == nil {
		return ""
	}
	return s.ActiveAccount.ID
}

// FindAccount looks an account up by id.
func (s State) FindAccount(id string) (types.WalletAccount, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return types.WalletAccount{}, false
}

// FindCustomNetwork looks a custom network up by id.
func (s State) FindCustomNetwork(id string) (network.CustomNetwork, bool) {
	for _, c := range s.CustomNetworks {
		if c.ID == id {
			return c, true
		}
	}
	return network.CustomNetwork{}, false
}
