package network

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Type distinguishes production chains from test chains.
type Type string

const (
	TypeMainnet Type = "mainnet"
	TypeTestnet Type = "testnet"
)

// ParseType validates a textual network type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeMainnet:
		return TypeMainnet, nil
	case TypeTestnet:
		return TypeTestnet, nil
	default:
		return "", fmt.Errorf("invalid network type %q", s)
	}
}

// Currency describes a chain's native asset.
type Currency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// Chain is an entry of the predefined chain table.
type Chain struct {
	ID          int64    `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Type        Type     `json:"type" yaml:"type"`
	RPCURL      string   `json:"rpcUrl" yaml:"rpcUrl"`
	ExplorerURL string   `json:"explorerUrl" yaml:"explorerUrl"`
	AlchemySlug string   `json:"alchemySlug,omitempty" yaml:"alchemySlug"`
	Currency    Currency `json:"currency" yaml:"currency"`
}

// CustomNetwork is a user-added network definition. Timestamps are unix millis.
type CustomNetwork struct {
	ID               string `json:"id"`
	ChainID          int64  `json:"chainId"`
	Name             string `json:"name"`
	RPCURL           string `json:"rpcUrl"`
	Currency         string `json:"currency"`
	BlockExplorerURL string `json:"blockExplorerUrl,omitempty"`
	Type             Type   `json:"type,omitempty"`
	CreatedAt        int64  `json:"createdAt,omitempty"`
	LastUsed         int64  `json:"lastUsed,omitempty"`
}

// SameDefinition compares two custom networks ignoring LastUsed.
func (c CustomNetwork) SameDefinition(o CustomNetwork) bool {
	c.LastUsed, o.LastUsed = 0, 0
	return c == o
}

// ValidateCustomNetwork checks user input for a new or edited custom network.
func ValidateCustomNetwork(c CustomNetwork) error {
	if c.ChainID <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("network name is required")
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("currency symbol is required")
	}
	u, err := url.Parse(c.RPCURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("rpc url must be an absolute http(s) url")
	}
	if c.Type != "" {
		if _, err := ParseType(string(c.Type)); err != nil {
			return err
		}
	}
	return nil
}

// Kind tags which variant a Network holds.
type Kind int

const (
	KindPredefined Kind = iota + 1
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindPredefined:
		return "predefined"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Network is either a predefined Chain or a CustomNetwork. The zero value is invalid.
type Network struct {
	kind       Kind
	predefined Chain
	custom     CustomNetwork
}

// Predefined wraps a chain from the predefined table.
func Predefined(c Chain) Network {
	return Network{kind: KindPredefined, predefined: c}
}

// Custom wraps a user-added network.
func Custom(c CustomNetwork) Network {
	return Network{kind: KindCustom, custom: c}
}

func (n Network) Kind() Kind     { return n.kind }
func (n Network) IsCustom() bool { return n.kind == KindCustom }
func (n Network) IsZero() bool   { return n.kind == 0 }

// Chain returns the predefined chain; ok is false for custom networks.
func (n Network) Chain() (Chain, bool) {
	return n.predefined, n.kind == KindPredefined
}

// CustomNetwork returns the custom definition; ok is false for predefined chains.
func (n Network) CustomNetwork() (CustomNetwork, bool) {
	return n.custom, n.kind == KindCustom
}

func (n Network) ChainID() int64 {
	if n.kind == KindCustom {
		return n.custom.ChainID
	}
	return n.predefined.ID
}

func (n Network) Name() string {
	if n.kind == KindCustom {
		return n.custom.Name
	}
	return n.predefined.Name
}

func (n Network) RPCURL() string {
	if n.kind == KindCustom {
		return n.custom.RPCURL
	}
	return n.predefined.RPCURL
}

func (n Network) ExplorerURL() string {
	if n.kind == KindCustom {
		return n.custom.BlockExplorerURL
	}
	return n.predefined.ExplorerURL
}

// Currency returns the native asset. Custom networks are assumed to use 18 decimals.
func (n Network) Currency() Currency {
	if n.kind == KindCustom {
		return Currency{Name: n.custom.Currency, Symbol: n.custom.Currency, Decimals: 18}
	}
	return n.predefined.Currency
}

// Type reports the network type; custom networks without one count as testnets.
func (n Network) Type() Type {
	if n.kind == KindCustom {
		if n.custom.Type == "" {
			return TypeTestnet
		}
		return n.custom.Type
	}
	return n.predefined.Type
}

// Equal compares identity. Custom networks are compared ignoring LastUsed.
func (n Network) Equal(o Network) bool {
	if n.kind != o.kind {
		return false
	}
	if n.kind == KindCustom {
		return n.custom.SameDefinition(o.custom)
	}
	return n.predefined == o.predefined
}

type networkJSON struct {
	Kind        string   `json:"kind"`
	ChainID     int64    `json:"chainId"`
	Name        string   `json:"name"`
	Type        Type     `json:"type"`
	RPCURL      string   `json:"rpcUrl"`
	ExplorerURL string   `json:"explorerUrl,omitempty"`
	Currency    Currency `json:"currency"`
	CustomID    string   `json:"customId,omitempty"`
}

// MarshalJSON renders a flattened view for API consumers.
func (n Network) MarshalJSON() ([]byte, error) {
	if n.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(networkJSON{
		Kind:        n.kind.String(),
		ChainID:     n.ChainID(),
		Name:        n.Name(),
		Type:        n.Type(),
		RPCURL:      n.RPCURL(),
		ExplorerURL: n.ExplorerURL(),
		Currency:    n.Currency(),
		CustomID:    n.custom.ID,
	})
}
