package coinmarketcap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyphera/cyphera-wallet/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

func TestGetLatestQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, quotesPath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-CMC_PRO_API_KEY"))
		assert.Equal(t, "ETH,USDC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "USD", r.URL.Query().Get("convert"))
		_, _ = w.Write([]byte(`{"status":{"error_code":0},"data":{
			"ETH":[{"id":1027,"symbol":"ETH","quote":{"USD":{"price":3000.25}}}],
			"USDC":[{"id":3408,"symbol":"USDC","quote":{"USD":{"price":1.0}}}]}}`))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	resp, err := c.GetLatestQuotes(context.Background(), []string{"eth", "usdc"}, []string{"usd"})
	require.NoError(t, err)
	assert.Equal(t, 1027, resp.Data["ETH"][0].ID)

	prices, err := c.USDPrices(context.Background(), []string{"eth", "usdc"})
	require.NoError(t, err)
	assert.Equal(t, "3000.25", prices["ETH"].String())
	assert.Equal(t, "1", prices["USDC"].String())
}

func TestGetLatestQuotes_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"error_code":1002,"error_message":"API key missing."}}`))
	}))
	defer srv.Close()

	_, err := NewClient("secret", srv.URL).GetLatestQuotes(context.Background(), []string{"ETH"}, nil)
	var cmcErr *Error
	require.ErrorAs(t, err, &cmcErr)
	assert.Contains(t, cmcErr.Message, "1002")
}

func TestGetLatestQuotes_EmptySymbols(t *testing.T) {
	_, err := NewClient("secret", "").GetLatestQuotes(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestUSDPrices_WithoutKeyIsEmpty(t *testing.T) {
	prices, err := NewClient("", "").USDPrices(context.Background(), []string{"ETH"})
	require.NoError(t, err)
	assert.Empty(t, prices)
}
