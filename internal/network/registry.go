package network

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed chains.yaml
var chainsYAML []byte

type registryFile struct {
	Chains   []Chain        `yaml:"chains"`
	Defaults map[Type]int64 `yaml:"defaults"`
}

// Registry is the predefined chain table.
type Registry struct {
	chains   map[int64]Chain
	order    []int64
	defaults map[Type]int64
}

// LoadRegistry parses the embedded chain table.
func LoadRegistry() (*Registry, error) {
	return ParseRegistry(chainsYAML)
}

// MustLoadRegistry is LoadRegistry for package init and tests.
func MustLoadRegistry() *Registry {
	r, err := LoadRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRegistry builds a Registry from a YAML document.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse chain table: %w", err)
	}

	r := &Registry{
		chains:   make(map[int64]Chain, len(f.Chains)),
		defaults: f.Defaults,
	}
	for _, c := range f.Chains {
		if _, dup := r.chains[c.ID]; dup {
			return nil, fmt.Errorf("duplicate chain id %d", c.ID)
		}
		if _, err := ParseType(string(c.Type)); err != nil {
			return nil, fmt.Errorf("chain %d: %w", c.ID, err)
		}
		r.chains[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	for _, t := range []Type{TypeMainnet, TypeTestnet} {
		id, ok := r.defaults[t]
		if !ok {
			return nil, fmt.Errorf("missing default chain for %s", t)
		}
		if _, ok := r.chains[id]; !ok {
			return nil, fmt.Errorf("default %s chain %d is not in the table", t, id)
		}
	}
	return r, nil
}

// Chain looks up a predefined chain.
func (r *Registry) Chain(id int64) (Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// Chains lists predefined chains of the given type in table order. An empty type lists all.
func (r *Registry) Chains(t Type) []Chain {
	out := make([]Chain, 0, len(r.order))
	for _, id := range r.order {
		c := r.chains[id]
		if t == "" || c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// DefaultFor returns the fallback chain for a network type.
func (r *Registry) DefaultFor(t Type) Network {
	id, ok := r.defaults[t]
	if !ok {
		id = r.defaults[TypeMainnet]
	}
	return Predefined(r.chains[id])
}

// Default is the hardcoded fallback used when nothing else resolves.
func (r *Registry) Default() Network {
	return r.DefaultFor(TypeMainnet)
}

// Resolve maps a chain id to a Network. Custom networks shadow predefined chains
// with the same id.
func (r *Registry) Resolve(chainID int64, customs []CustomNetwork) (Network, bool) {
	for _, c := range customs {
		if c.ChainID == chainID {
			return Custom(c), true
		}
	}
	if c, ok := r.chains[chainID]; ok {
		return Predefined(c), true
	}
	return Network{}, false
}

// ResolveOrDefault is Resolve falling back to the default chain for t.
func (r *Registry) ResolveOrDefault(chainID int64, customs []CustomNetwork, t Type) (Network, bool) {
	if n, ok := r.Resolve(chainID, customs); ok {
		return n, true
	}
	return r.DefaultFor(t), false
}

// AlchemySlug returns the data-provider network slug for a chain.
func (r *Registry) AlchemySlug(chainID int64) (string, bool) {
	c, ok := r.chains[chainID]
	if !ok || c.AlchemySlug == "" {
		return "", false
	}
	return c.AlchemySlug, true
}

// SupportedChainIDs lists chain ids that have a data-provider slug, ascending.
func (r *Registry) SupportedChainIDs() []int64 {
	var ids []int64
	for id, c := range r.chains {
		if c.AlchemySlug != "" {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

const fallbackExplorer = "https://etherscan.io"

func (r *Registry) explorerBase(chainID int64) string {
	if c, ok := r.chains[chainID]; ok && c.ExplorerURL != "" {
		return strings.TrimRight(c.ExplorerURL, "/")
	}
	return fallbackExplorer
}

// TxURL links a transaction hash on the chain's block explorer.
func (r *Registry) TxURL(chainID int64, hash string) string {
	return r.explorerBase(chainID) + "/tx/" + hash
}

// AddressURL links an address on the chain's block explorer.
func (r *Registry) AddressURL(chainID int64, address string) string {
	return r.explorerBase(chainID) + "/address/" + address
}
