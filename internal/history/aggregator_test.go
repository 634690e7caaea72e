package history_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/history"
	"github.com/cyphera/cyphera-wallet/internal/mocks"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/state"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var reg = network.MustLoadRegistry()

func newState(t *testing.T, withAccount bool) *state.Store {
	t.Helper()
	st := state.NewStore(state.Defaults(reg, network.TypeMainnet))
	st.Initialize(state.Defaults(reg, network.TypeMainnet))
	if withAccount {
		st.AddAccount(types.WalletAccount{ID: "a1", Name: "Main", Address: owner, CreatedAt: 1})
	}
	return st
}

func TestAggregator_RequiresActiveAccount(t *testing.T) {
	agg := history.NewAggregator(mocks.NewMockTransfersFetcherForTest(t), newState(t, false))
	_, err := agg.Query(history.Filters{})
	assert.ErrorIs(t, err, history.ErrNoAddress)
}

func TestAggregator_QueryPerFilterSet(t *testing.T) {
	agg := history.NewAggregator(mocks.NewMockTransfersFetcherForTest(t), newState(t, true))

	q1, err := agg.Query(history.Filters{})
	require.NoError(t, err)
	q2, _ := agg.Query(history.Filters{Categories: types.AllCategories})
	q3, _ := agg.Query(history.Filters{Categories: []types.TransferCategory{types.CategoryERC20}})

	assert.Same(t, q1, q2)
	assert.NotSame(t, q1, q3)
	assert.Equal(t, 2, agg.Len())

	p := q1.Params()
	assert.Equal(t, owner, p.Address)
	assert.Equal(t, int64(1), p.ChainID)
	assert.Equal(t, "ETH", p.NativeSymbol)
}

func TestAggregator_InvalidatesOnNetworkAndAccountChange(t *testing.T) {
	st := newState(t, true)
	agg := history.NewAggregator(mocks.NewMockTransfersFetcherForTest(t), st)
	agg.Start()
	defer agg.Stop()

	_, err := agg.Query(history.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Len())

	polygon, _ := reg.Resolve(137, nil)
	st.SetSelectedNetwork(polygon)
	assert.Equal(t, 0, agg.Len())

	q, _ := agg.Query(history.Filters{})
	assert.Equal(t, int64(137), q.Params().ChainID)
	assert.Equal(t, "POL", q.Params().NativeSymbol)

	st.AddAccount(types.WalletAccount{ID: "a2", Address: "0x8617E340B3D01FA5F11F306F4090FD50E238070D"})
	assert.Equal(t, 1, agg.Len(), "adding a second account keeps the active one")
	st.SetActiveAccountByID("a2")
	assert.Equal(t, 0, agg.Len())
}

func TestAggregator_OpenStartsOnce(t *testing.T) {
	fetcher := mocks.NewMockTransfersFetcherForTest(t)
	agg := history.NewAggregator(fetcher, newState(t, true), history.WithAggregatorRetryPolicy(fastPolicy()))

	fetcher.EXPECT().GetAssetTransfers(gomock.Any(), int64(1), req("")).
		Return(types.TransfersPage{Transfers: transfers("a", 2)}, nil).Times(1)

	q, err := agg.Open(context.Background(), history.Filters{})
	require.NoError(t, err)
	again, err := agg.Open(context.Background(), history.Filters{})
	require.NoError(t, err)
	assert.Same(t, q, again)
	assert.Len(t, again.Transfers(""), 2)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAggregator_PollRefetchesStaleQueries(t *testing.T) {
	fetcher := mocks.NewMockTransfersFetcherForTest(t)
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	agg := history.NewAggregator(fetcher, newState(t, true),
		history.WithAggregatorRetryPolicy(fastPolicy()),
		history.WithAggregatorClock(clock.Now),
		history.WithStaleTime(30*time.Second))

	refetched := make(chan struct{})
	gomock.InOrder(
		fetcher.EXPECT().GetAssetTransfers(gomock.Any(), int64(1), req("")).
			Return(types.TransfersPage{Transfers: transfers("a", 1)}, nil),
		fetcher.EXPECT().GetAssetTransfers(gomock.Any(), int64(1), req("")).
			DoAndReturn(func(context.Context, int64, types.AssetTransfersRequest) (types.TransfersPage, error) {
				defer close(refetched)
				return types.TransfersPage{Transfers: transfers("b", 2)}, nil
			}),
	)

	q, err := agg.Open(context.Background(), history.Filters{})
	require.NoError(t, err)
	clock.Advance(31 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Poll(ctx, 2*time.Millisecond)

	select {
	case <-refetched:
	case <-time.After(time.Second):
		t.Fatal("stale query was not refetched")
	}
	assert.Eventually(t, func() bool { return len(q.Transfers("")) == 2 }, time.Second, time.Millisecond)
}

func TestComputeStats(t *testing.T) {
	other := "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	ts := []types.Transfer{
		{From: other, To: owner, Asset: "ETH", Category: types.CategoryExternal, Value: decimal.NewNullDecimal(decimal.RequireFromString("1.5"))},
		{From: owner, To: other, Asset: "ETH", Category: types.CategoryExternal, Value: decimal.NewNullDecimal(decimal.RequireFromString("0.25"))},
		{From: "0x1111111111111111111111111111111111111111", To: owner, Asset: "USDC", Category: types.CategoryERC20, Value: decimal.NewNullDecimal(decimal.NewFromInt(100))},
		{From: "0x2222222222222222222222222222222222222222", To: owner, Asset: "ETH", Category: types.CategoryInternal},
	}

	stats := history.ComputeStats(ts, "ETH", owner)

	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, "1.75", stats.TotalValue.String())
	assert.Equal(t, 2, stats.Categories[types.CategoryExternal])
	assert.Equal(t, 1, stats.Categories[types.CategoryERC20])
	assert.Equal(t, 3, stats.Assets["ETH"])
	assert.Equal(t, 1, stats.Assets["USDC"])
	assert.Equal(t, uint64(3), stats.UniqueCounterparties)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := history.ComputeStats(nil, "ETH", owner)
	assert.Zero(t, stats.TotalTransactions)
	assert.True(t, stats.TotalValue.IsZero())
	assert.Empty(t, stats.Categories)
	assert.Zero(t, stats.UniqueCounterparties)
}

func TestAggregator_UsesCallerLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fetcher := mocks.NewMockTransfersFetcherForTest(t)
	fetcher.EXPECT().GetAssetTransfers(gomock.Any(), int64(1), gomock.Any()).
		Return(types.TransfersPage{}, errors.New("invalid params")).Times(1)

	agg := history.NewAggregator(fetcher, newState(t, true), history.WithAggregatorLogger(zap.New(core)))
	_, err := agg.Open(context.Background(), history.Filters{})
	require.Error(t, err)

	failed := logs.FilterMessage("Failed to fetch transfer history").All()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ContextMap(), "query")
}
