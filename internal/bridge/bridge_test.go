package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/bridge"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/state"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

var reg = network.MustLoadRegistry()

// fakeSyncer selects predefined networks and records storage changes.
type fakeSyncer struct {
	st *state.Store

	mu      sync.Mutex
	chains  []int64
	changes map[string][]byte
	err     error
}

func newFakeSyncer(st *state.Store) *fakeSyncer {
	return &fakeSyncer{st: st, changes: map[string][]byte{}}
}

func (f *fakeSyncer) HandleNetworkChanged(_ context.Context, chainID int64) bool {
	f.mu.Lock()
	f.chains = append(f.chains, chainID)
	f.mu.Unlock()
	if f.st.Get().SelectedNetwork.ChainID() == chainID {
		return false
	}
	n, ok := reg.Resolve(chainID, nil)
	if !ok {
		return false
	}
	f.st.SetSelectedNetwork(n)
	f.st.RefreshBalances()
	return true
}

func (f *fakeSyncer) ApplyExternalChange(_ context.Context, key string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes[key] = raw
	return f.err
}

func newState() *state.Store {
	st := state.NewStore(state.Defaults(reg, network.TypeMainnet))
	st.Initialize(state.Defaults(reg, network.TypeMainnet))
	return st
}

func msg(t *testing.T, raw string) bridge.Message {
	t.Helper()
	var m bridge.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestDispatcher_Handle(t *testing.T) {
	ctx := context.Background()
	st := newState()
	syncer := newFakeSyncer(st)
	d := bridge.NewDispatcher(st, syncer, nil)

	handle := func(raw string) {
		t.Helper()
		ack, err := d.Handle(ctx, msg(t, raw))
		require.NoError(t, err)
		assert.True(t, ack.Received)
	}

	handle(`{"type":"WALLET_LOCKED"}`)
	assert.True(t, st.Get().WalletLocked)
	handle(`{"type":"WALLET_UNLOCKED"}`)
	assert.False(t, st.Get().WalletLocked)

	handle(`{"type":"NETWORK_STATUS_CHANGE","payload":false}`)
	assert.False(t, st.Get().NetworkOnline)
	handle(`{"type":"NETWORK_STATUS_CHANGE","payload":{"online":true}}`)
	assert.True(t, st.Get().NetworkOnline)

	handle(`{"type":"ACCOUNTS_UPDATED","payload":{"hasAccounts":true}}`)
	assert.True(t, st.Get().HasAccounts)

	handle(`{"type":"ACCOUNT_ACTIVATED","payload":{"account":{"id":"bg","name":"Background","address":"0x52908400098527886E0F7030069857D2E4169EE7","createdAt":1}}}`)
	require.NotNil(t, st.Get().ActiveAccount)
	assert.Equal(t, "bg", st.Get().ActiveAccount.ID)

	before := st.Get().BalanceVersion
	handle(`{"type":"BALANCE_UPDATE"}`)
	assert.Equal(t, before+1, st.Get().BalanceVersion)

	handle(`{"type":"NETWORK_CHANGED","data":{"chainId":137}}`)
	assert.Equal(t, int64(137), st.Get().SelectedNetwork.ChainID())
	assert.Equal(t, []int64{137}, syncer.chains)

	handle(`{"type":"STORAGE_CHANGED","payload":{"key":"theme","value":"dark"}}`)
	handle(`{"type":"STORAGE_CHANGED","payload":{"key":"wallet_locked","value":null}}`)
	assert.Equal(t, []byte(`"dark"`), syncer.changes["theme"])
	v, ok := syncer.changes["wallet_locked"]
	assert.True(t, ok)
	assert.Nil(t, v)

	handle(`{"type":"SOMETHING_NEW","payload":{}}`)
}

func TestDispatcher_ActivatesListedAccount(t *testing.T) {
	st := newState()
	st.SetAccountsList([]types.WalletAccount{{ID: "a1", Name: "One", Address: "0x52908400098527886E0F7030069857D2E4169EE7"}})
	d := bridge.NewDispatcher(st, newFakeSyncer(st), nil)

	_, err := d.Handle(context.Background(), msg(t, `{"type":"ACCOUNT_ACTIVATED","payload":{"account":{"id":"a1"}}}`))
	require.NoError(t, err)

	active := st.Get().ActiveAccount
	require.NotNil(t, active)
	assert.Equal(t, "One", active.Name, "listed account is taken from the list")
	assert.NotZero(t, active.LastUsed)
}

func TestDispatcher_Errors(t *testing.T) {
	st := newState()
	syncer := newFakeSyncer(st)
	syncer.err = errors.New("bad value")
	d := bridge.NewDispatcher(st, syncer, nil)

	tests := []struct {
		name string
		raw  string
	}{
		{"missing payload", `{"type":"ACCOUNTS_UPDATED"}`},
		{"malformed payload", `{"type":"NETWORK_CHANGED","payload":{"chainId":"abc"}}`},
		{"storage apply fails", `{"type":"STORAGE_CHANGED","payload":{"key":"theme","value":"neon"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := d.Handle(context.Background(), msg(t, tt.raw))
			assert.Error(t, err)
			assert.True(t, ack.Received)
		})
	}
}

func TestNewMessage(t *testing.T) {
	m, err := bridge.NewMessage(bridge.TypeCheckNetworkStatus, nil)
	require.NoError(t, err)
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CHECK_NETWORK_STATUS"}`, string(raw))
}

// wsServer accepts websocket connections and hands each to handler.
func wsServer(t *testing.T, handler func(conn *websocket.Conn, n int)) (*httptest.Server, *int32) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, int(atomic.AddInt32(&conns, 1)))
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(httpURL string) string {
	return strings.Replace(httpURL, "http://", "ws://", 1)
}

func testConfig(url string) bridge.Config {
	cfg := bridge.DefaultConfig(url)
	cfg.ReadTimeout = 2 * time.Second
	cfg.PingInterval = 0
	cfg.MinBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	return cfg
}

func readMessage(t *testing.T, conn *websocket.Conn) bridge.Message {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m bridge.Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Errorf("server read: %v", err)
	}
	return m
}

func TestClient_RoundTrip(t *testing.T) {
	st := newState()
	got := make(chan bridge.Message, 16)
	release := make(chan struct{})

	srv, _ := wsServer(t, func(conn *websocket.Conn, _ int) {
		got <- readMessage(t, conn) // status check on connect

		assert.NoError(t, conn.WriteJSON(map[string]any{"id": "1", "type": "WALLET_LOCKED"}))
		got <- readMessage(t, conn)

		assert.NoError(t, conn.WriteJSON(map[string]any{"id": "2", "type": "NETWORK_CHANGED", "data": map[string]any{"chainId": 8453}}))
		got <- readMessage(t, conn)

		got <- readMessage(t, conn) // local network switch
		got <- readMessage(t, conn) // local unlock
		<-release
	})
	defer close(release)

	client := bridge.NewClient(testConfig(wsURL(srv.URL)), bridge.NewDispatcher(st, newFakeSyncer(st), nil))
	client.Watch(st)
	client.Start(context.Background())
	defer client.Stop()

	next := func() bridge.Message {
		t.Helper()
		select {
		case m := <-got:
			return m
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for client message")
			return bridge.Message{}
		}
	}

	assert.Equal(t, bridge.TypeCheckNetworkStatus, next().Type)

	// the lock came from the background, so only the ack goes back
	ack := next()
	assert.Equal(t, bridge.TypeAck, ack.Type)
	assert.Equal(t, "1", ack.ID)
	assert.JSONEq(t, `{"received":true}`, string(ack.Payload))
	assert.True(t, st.Get().WalletLocked)

	ack = next()
	assert.Equal(t, bridge.TypeAck, ack.Type)
	assert.Equal(t, "2", ack.ID)
	assert.Equal(t, int64(8453), st.Get().SelectedNetwork.ChainID())

	n, ok := reg.Resolve(42161, nil)
	require.True(t, ok)
	st.SetSelectedNetwork(n)
	changed := next()
	assert.Equal(t, bridge.TypeNetworkChanged, changed.Type)
	assert.JSONEq(t, `{"chainId":42161}`, string(changed.Payload))

	st.SetWalletLocked(false)
	lock := next()
	assert.Equal(t, bridge.TypeWalletLockStatusChanged, lock.Type)
	assert.JSONEq(t, `{"locked":false}`, string(lock.Payload))
}

func TestClient_Reconnects(t *testing.T) {
	st := newState()
	srv, conns := wsServer(t, func(conn *websocket.Conn, n int) {
		_, _, _ = conn.ReadMessage()
		if n == 1 {
			return // drop the first connection
		}
		_ = conn.WriteJSON(map[string]any{"type": "BALANCE_UPDATE"})
		time.Sleep(200 * time.Millisecond)
	})

	client := bridge.NewClient(testConfig(wsURL(srv.URL)), bridge.NewDispatcher(st, newFakeSyncer(st), nil))
	client.Start(context.Background())
	defer client.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(conns) >= 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return st.Get().BalanceVersion >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	st := newState()
	client := bridge.NewClient(testConfig("ws://127.0.0.1:1"), bridge.NewDispatcher(st, newFakeSyncer(st), nil))
	assert.False(t, client.Connected())
	assert.ErrorIs(t, client.NotifyNetworkChange(1), bridge.ErrNotConnected)

	// notifications while offline are dropped without blocking
	client.Watch(st)
	st.SetWalletLocked(true)
	client.Stop()
}
