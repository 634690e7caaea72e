package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/state"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send while the connection is down.
var ErrNotConnected = errors.New("bridge: not connected")

// Config holds the websocket connection settings.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		MinBackoff:       500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
	}
}

// Client keeps a websocket connection to the background open, feeds inbound
// messages to a Dispatcher and sends state notifications out.
type Client struct {
	cfg        Config
	dispatcher *Dispatcher
	header     http.Header
	log        *zap.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHeader sets headers sent with the websocket handshake.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func NewClient(cfg Config, d *Dispatcher, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		dispatcher: d,
		header:     make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log, "bridge")
	return c
}

// Start runs the connection loop until ctx is cancelled or Stop is called.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop closes the connection, waits for the loop to exit and drops state
// subscriptions made by Watch.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConn()
	c.wg.Wait()

	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.MinBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	b := c.newBackOff(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connect(ctx); err != nil {
			wait := b.NextBackOff()
			if wait == backoff.Stop {
				return
			}
			c.log.Warn("Bridge connection failed", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		b.Reset()
		c.serve(ctx)
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.Info("Bridge connected", zap.String("url", c.cfg.URL))
	if err := c.RequestNetworkStatusCheck(); err != nil {
		c.closeConn()
		return fmt.Errorf("request network status: %w", err)
	}
	return nil
}

// serve reads until the connection fails.
func (c *Client) serve(ctx context.Context) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, done)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(c.readDeadline())
	})

	for {
		_ = conn.SetReadDeadline(c.readDeadline())
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("Bridge read failed", zap.Error(err))
			}
			c.dropConn(conn)
			return
		}
		c.handle(ctx, data)
	}
}

func (c *Client) readDeadline() time.Time {
	if c.cfg.ReadTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.ReadTimeout)
}

func (c *Client) handle(ctx context.Context, data []byte) {
	msg, ack, err := c.dispatcher.HandleRaw(ctx, data)
	if err != nil {
		c.log.Error("Failed to handle bridge message", zap.String("type", string(msg.Type)), zap.Error(err))
	}
	if msg.ID == "" {
		return
	}
	reply, err := NewMessage(TypeAck, ack)
	if err != nil {
		return
	}
	reply.ID = msg.ID
	if err := c.Send(reply); err != nil {
		c.log.Warn("Failed to acknowledge bridge message", zap.String("id", msg.ID), zap.Error(err))
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Warn("Bridge ping failed", zap.Error(err))
				c.dropConn(conn)
				return
			}
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// dropConn closes conn and clears it only if it is still the current
// connection. A stale reader or pinger never tears down its replacement.
func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = conn.Close()
	if c.conn == conn {
		c.conn = nil
	}
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Send writes msg to the background. Writes are serialized.
func (c *Client) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) sendTyped(t MessageType, payload any) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// NotifyWalletLockStatus tells the background the wallet was locked or unlocked.
func (c *Client) NotifyWalletLockStatus(locked bool) error {
	return c.sendTyped(TypeWalletLockStatusChanged, lockStatusPayload{Locked: locked})
}

// NotifyNetworkChange tells the background the UI switched networks.
func (c *Client) NotifyNetworkChange(chainID int64) error {
	return c.sendTyped(TypeNetworkChanged, chainPayload{ChainID: chainID})
}

// RequestNetworkStatusCheck asks the background to report connectivity.
func (c *Client) RequestNetworkStatusCheck() error {
	return c.sendTyped(TypeCheckNetworkStatus, nil)
}

// Watch sends lock and network notifications whenever st changes them. Changes
// that were applied from the background are not sent back.
func (c *Client) Watch(st *state.Store) {
	echo := c.dispatcher.echo

	unlock := state.Subscribe(st, func(s state.State) bool { return s.WalletLocked }, state.Equal[bool],
		func(locked, _ bool) {
			if echo.isLocked(locked) {
				return
			}
			c.notify("lock status", c.NotifyWalletLockStatus(locked))
		})

	unnet := state.Subscribe(st, func(s state.State) network.Network { return s.SelectedNetwork },
		func(a, b network.Network) bool { return a.ChainID() == b.ChainID() },
		func(next, _ network.Network) {
			if echo.isChain(next.ChainID()) {
				return
			}
			c.notify("network change", c.NotifyNetworkChange(next.ChainID()))
		})

	c.mu.Lock()
	c.unsubs = append(c.unsubs, unlock, unnet)
	c.mu.Unlock()
}

func (c *Client) notify(what string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotConnected):
		c.log.Debug("Bridge offline, dropping notification", zap.String("notification", what))
	default:
		c.log.Warn("Failed to send bridge notification", zap.String("notification", what), zap.Error(err))
	}
}
