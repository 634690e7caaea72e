package alchemy_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyphera/cyphera-wallet/internal/client/alchemy"
	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

type rpcCall struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func newServer(t *testing.T, handler func(path string, call rpcCall) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		assert.Equal(t, "2.0", call.JSONRPC)
		status, body := handler(r.URL.Path, call)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server, key string) *alchemy.Client {
	return alchemy.NewClient(key, network.MustLoadRegistry(),
		alchemy.WithRateLimit(1000, 10),
		alchemy.WithEndpoint(func(slug, apiKey string) string {
			return srv.URL + "/" + slug + "/v2/" + apiKey
		}))
}

func TestGetAssetTransfers(t *testing.T) {
	srv := newServer(t, func(path string, call rpcCall) (int, string) {
		assert.Equal(t, "/base-mainnet/v2/key", path)
		assert.Equal(t, "alchemy_getAssetTransfers", call.Method)
		require.Len(t, call.Params, 1)

		var req types.AssetTransfersRequest
		require.NoError(t, json.Unmarshal(call.Params[0], &req))
		assert.Equal(t, "0x0", req.FromBlock)
		assert.Equal(t, "0x64", req.MaxCount)
		assert.Equal(t, "cursor-1", req.PageKey)
		assert.True(t, req.WithMetadata)
		assert.True(t, req.ExcludeZeroValue)
		assert.Len(t, req.Category, 5)

		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{
			"transfers":[{"blockNum":"0x10","uniqueId":"u1","hash":"0xabc","from":"0x1","to":"0x2","value":1.5,"asset":"ETH","category":"external","rawContract":{"value":"0x14d1120d7b160000","address":null,"decimal":"0x12"}}],
			"pageKey":"cursor-2"}}`
	})

	c := newClient(srv, "key")
	page, err := c.GetAssetTransfers(context.Background(), 8453, types.NewAssetTransfersRequest("0x2", nil, "", "cursor-1"))

	require.NoError(t, err)
	require.Len(t, page.Transfers, 1)
	assert.Equal(t, "0xabc", page.Transfers[0].Hash)
	assert.Equal(t, "1.5", page.Transfers[0].ValueString())
	assert.Equal(t, "cursor-2", page.PageKey)
	assert.True(t, page.HasMore())
}

func TestGetAssetTransfers_LastPage(t *testing.T) {
	srv := newServer(t, func(string, rpcCall) (int, string) {
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"transfers":[]}}`
	})

	page, err := newClient(srv, "key").GetAssetTransfers(context.Background(), 1, types.NewAssetTransfersRequest("0x2", nil, "", ""))
	require.NoError(t, err)
	assert.Empty(t, page.Transfers)
	assert.NotNil(t, page.Transfers)
	assert.False(t, page.HasMore())
}

func TestRPCError(t *testing.T) {
	srv := newServer(t, func(string, rpcCall) (int, string) {
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid address"}}`
	})

	_, err := newClient(srv, "key").GetAssetTransfers(context.Background(), 1, types.NewAssetTransfersRequest("nope", nil, "", ""))
	var rpcErr *alchemy.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestHTTPErrorIsSurfaced(t *testing.T) {
	srv := newServer(t, func(string, rpcCall) (int, string) {
		return http.StatusTooManyRequests, `{"error":"rate limited"}`
	})

	_, err := newClient(srv, "key").GetTokenBalances(context.Background(), 1, "0x2")
	require.Error(t, err)
	assert.True(t, httpClient.IsRetryable(err))
}

func TestUnsupportedChainAndMissingKey(t *testing.T) {
	srv := newServer(t, func(string, rpcCall) (int, string) {
		t.Fatal("no request expected")
		return 0, ""
	})

	_, err := newClient(srv, "key").GetAssetTransfers(context.Background(), 31337, types.AssetTransfersRequest{})
	assert.ErrorIs(t, err, alchemy.ErrUnsupportedChain)
	assert.False(t, newClient(srv, "key").Supports(31337))
	assert.True(t, newClient(srv, "key").Supports(137))

	_, err = newClient(srv, "").GetTokenMetadata(context.Background(), 1, "0xa0b8")
	assert.ErrorIs(t, err, alchemy.ErrMissingAPIKey)
}

func TestGetTokenBalancesAndMetadata(t *testing.T) {
	srv := newServer(t, func(_ string, call rpcCall) (int, string) {
		switch call.Method {
		case "alchemy_getTokenBalances":
			var addr, kind string
			require.NoError(t, json.Unmarshal(call.Params[0], &addr))
			require.NoError(t, json.Unmarshal(call.Params[1], &kind))
			assert.Equal(t, "0xowner", addr)
			assert.Equal(t, "erc20", kind)
			return http.StatusOK, `{"result":{"address":"0xowner","tokenBalances":[
				{"contractAddress":"0xusdc","tokenBalance":"0x00000000000000000000000000000000000000000000000000000000000f4240"},
				{"contractAddress":"0xdead","tokenBalance":"0x0"}]}}`
		case "alchemy_getTokenMetadata":
			return http.StatusOK, `{"result":{"name":"USD Coin","symbol":"USDC","decimals":6,"logo":null}}`
		}
		return http.StatusBadRequest, ""
	})
	c := newClient(srv, "key")

	res, err := c.GetTokenBalances(context.Background(), 1, "0xowner")
	require.NoError(t, err)
	require.Len(t, res.TokenBalances, 2)
	assert.Equal(t, "1000000", res.TokenBalances[0].Amount().String())
	assert.Equal(t, "0", res.TokenBalances[1].Amount().String())

	md, err := c.GetTokenMetadata(context.Background(), 1, "0xusdc")
	require.NoError(t, err)
	assert.Equal(t, "USDC", md.Symbol)
	assert.Equal(t, 6, md.DecimalsOr(18))
	assert.Nil(t, md.Logo)
}
