package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry()
	require.NoError(t, err)

	eth, ok := r.Chain(1)
	require.True(t, ok)
	assert.Equal(t, "eth-mainnet", eth.AlchemySlug)
	assert.Equal(t, TypeMainnet, eth.Type)

	assert.Equal(t, int64(1), r.DefaultFor(TypeMainnet).ChainID())
	assert.Equal(t, int64(11155111), r.DefaultFor(TypeTestnet).ChainID())
	assert.Equal(t, int64(1), r.Default().ChainID())

	for _, c := range r.Chains(TypeTestnet) {
		assert.Equal(t, TypeTestnet, c.Type, c.Name)
	}
	assert.Len(t, r.Chains(""), len(r.Chains(TypeMainnet))+len(r.Chains(TypeTestnet)))
}

func TestParseRegistry_Errors(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		errString string
	}{
		{
			name:      "duplicate",
			doc:       "chains:\n  - {id: 1, type: mainnet}\n  - {id: 1, type: mainnet}\ndefaults: {mainnet: 1, testnet: 1}\n",
			errString: "duplicate chain id",
		},
		{
			name:      "bad type",
			doc:       "chains:\n  - {id: 1, type: devnet}\ndefaults: {mainnet: 1, testnet: 1}\n",
			errString: "invalid network type",
		},
		{
			name:      "missing default",
			doc:       "chains:\n  - {id: 1, type: mainnet}\ndefaults: {mainnet: 1}\n",
			errString: "missing default chain for testnet",
		},
		{
			name:      "unknown default",
			doc:       "chains:\n  - {id: 1, type: mainnet}\ndefaults: {mainnet: 1, testnet: 5}\n",
			errString: "not in the table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestResolve(t *testing.T) {
	r := MustLoadRegistry()
	customs := []CustomNetwork{
		{ID: "c1", ChainID: 31337, Name: "Anvil", RPCURL: "http://127.0.0.1:8545", Currency: "ETH"},
		{ID: "c2", ChainID: 137, Name: "My Polygon", RPCURL: "https://rpc.example.com", Currency: "POL"},
	}

	n, ok := r.Resolve(31337, customs)
	require.True(t, ok)
	assert.True(t, n.IsCustom())
	assert.Equal(t, "Anvil", n.Name())

	n, ok = r.Resolve(137, customs)
	require.True(t, ok)
	assert.Equal(t, KindCustom, n.Kind(), "custom networks shadow predefined ones")

	n, ok = r.Resolve(8453, customs)
	require.True(t, ok)
	assert.Equal(t, KindPredefined, n.Kind())

	_, ok = r.Resolve(999999, customs)
	assert.False(t, ok)

	n, ok = r.ResolveOrDefault(999999, nil, TypeTestnet)
	assert.False(t, ok)
	assert.Equal(t, int64(11155111), n.ChainID())
}

func TestExplorerURLs(t *testing.T) {
	r := MustLoadRegistry()
	assert.Equal(t, "https://basescan.org/tx/0xabc", r.TxURL(8453, "0xabc"))
	assert.Equal(t, "https://polygonscan.com/address/0x1", r.AddressURL(137, "0x1"))
	assert.Equal(t, "https://etherscan.io/tx/0xabc", r.TxURL(424242, "0xabc"))
}

func TestAlchemySlug(t *testing.T) {
	r := MustLoadRegistry()
	slug, ok := r.AlchemySlug(42161)
	require.True(t, ok)
	assert.Equal(t, "arb-mainnet", slug)

	_, ok = r.AlchemySlug(31337)
	assert.False(t, ok)

	ids := r.SupportedChainIDs()
	assert.Contains(t, ids, int64(1))
	assert.Contains(t, ids, int64(11155111))
}

func TestNetwork_Variant(t *testing.T) {
	r := MustLoadRegistry()
	eth := r.Default()

	c, ok := eth.Chain()
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.ID)
	_, ok = eth.CustomNetwork()
	assert.False(t, ok)

	custom := Custom(CustomNetwork{ID: "x", ChainID: 5, Name: "Local", RPCURL: "http://localhost", Currency: "TST", LastUsed: 10})
	assert.Equal(t, TypeTestnet, custom.Type())
	assert.Equal(t, Currency{Name: "TST", Symbol: "TST", Decimals: 18}, custom.Currency())

	bumped := custom
	cn, _ := bumped.CustomNetwork()
	cn.LastUsed = 99
	assert.True(t, custom.Equal(Custom(cn)), "lastUsed does not affect identity")
	assert.False(t, custom.Equal(eth))
	assert.True(t, Network{}.IsZero())
}

func TestNetwork_MarshalJSON(t *testing.T) {
	r := MustLoadRegistry()
	b, err := json.Marshal(r.Default())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "predefined", got["kind"])
	assert.Equal(t, float64(1), got["chainId"])

	b, err = json.Marshal(Network{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestValidateCustomNetwork(t *testing.T) {
	valid := CustomNetwork{ChainID: 31337, Name: "Anvil", RPCURL: "http://127.0.0.1:8545", Currency: "ETH"}
	tests := []struct {
		name      string
		mutate    func(*CustomNetwork)
		errString string
	}{
		{name: "valid", mutate: func(*CustomNetwork) {}},
		{name: "zero chain", mutate: func(c *CustomNetwork) { c.ChainID = 0 }, errString: "chain id"},
		{name: "no name", mutate: func(c *CustomNetwork) { c.Name = " " }, errString: "name"},
		{name: "no currency", mutate: func(c *CustomNetwork) { c.Currency = "" }, errString: "currency"},
		{name: "ws rpc", mutate: func(c *CustomNetwork) { c.RPCURL = "ws://x" }, errString: "rpc url"},
		{name: "bad type", mutate: func(c *CustomNetwork) { c.Type = "devnet" }, errString: "invalid network type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := ValidateCustomNetwork(c)
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}
