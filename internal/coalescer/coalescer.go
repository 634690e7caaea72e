// Package coalescer batches preference writes to the durable store. Repeated writes
// to a key inside the debounce window collapse into one store write of the last value.
package coalescer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/kvstore"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the write timing knobs.
type Config struct {
	Debounce     time.Duration
	RetryDelay   time.Duration
	BatchPause   time.Duration
	MaxBatchSize int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		Debounce:     time.Second,
		RetryDelay:   2 * time.Second,
		BatchPause:   100 * time.Millisecond,
		MaxBatchSize: 10,
	}
}

// Stats are cumulative counters since construction.
type Stats struct {
	Pending    int    `json:"pending"`
	Written    uint64 `json:"written"`
	Failed     uint64 `json:"failed"`
	Retried    uint64 `json:"retried"`
	Superseded uint64 `json:"superseded"`
}

type entry struct {
	value []byte
	seq   uint64
	timer *time.Timer
}

// Coalescer owns the pending-write map and the debounce timers. It never
// returns storage errors to callers; failures are logged.
type Coalescer struct {
	store kvstore.Store
	cfg   Config
	log   *zap.Logger

	mu             sync.Mutex
	pending        map[string]*entry
	latest         map[string]uint64
	keyLocks       map[string]*sync.Mutex
	seq            uint64
	processing     bool
	flushRequested bool
	idle           chan struct{}
	retries        map[*time.Timer]func()
	closed         bool

	written    atomic.Uint64
	failed     atomic.Uint64
	retried    atomic.Uint64
	superseded atomic.Uint64
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithLogger overrides the component logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coalescer) {
		c.log = l
	}
}

// New creates a Coalescer writing to store. Zero fields in cfg take their defaults.
func New(store kvstore.Store, cfg Config, opts ...Option) *Coalescer {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}

	c := &Coalescer{
		store:    store,
		cfg:      cfg,
		pending:  make(map[string]*entry),
		latest:   make(map[string]uint64),
		keyLocks: make(map[string]*sync.Mutex),
		retries:  make(map[*time.Timer]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log, "coalescer")
	return c
}

// Set queues value for key and restarts the key's debounce timer.
func (c *Coalescer) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.log.Warn("write after close dropped", zap.String("key", key))
		return
	}

	c.seq++
	c.latest[key] = c.seq
	if prev, ok := c.pending[key]; ok {
		prev.timer.Stop()
	}
	c.pending[key] = &entry{
		value: append([]byte(nil), value...),
		seq:   c.seq,
		timer: time.AfterFunc(c.cfg.Debounce, c.onTimer),
	}
}

// SetJSON marshals v and queues it. Nothing is queued when marshalling fails.
func (c *Coalescer) SetJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	c.Set(key, raw)
	return nil
}

// SetImmediate drops any pending value for key and writes value on the calling
// goroutine. A failed write is retried once after RetryDelay.
func (c *Coalescer) SetImmediate(key string, value []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn("immediate write after close dropped", zap.String("key", key))
		return
	}
	if prev, ok := c.pending[key]; ok {
		prev.timer.Stop()
		delete(c.pending, key)
	}
	c.seq++
	seq := c.seq
	c.latest[key] = seq
	value = append([]byte(nil), value...)
	c.mu.Unlock()

	err := c.write(context.Background(), key, value, seq)
	if err == nil {
		return
	}
	c.log.Error("Immediate write failed, retrying", zap.String("key", key), zap.Duration("delay", c.cfg.RetryDelay), zap.Error(err))
	c.scheduleRetry(key, value, seq)
}

func (c *Coalescer) scheduleRetry(key string, value []byte, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t *time.Timer
	run := func() {
		c.retried.Add(1)
		if err := c.write(context.Background(), key, value, seq); err != nil {
			c.log.Error("Retry write failed", zap.String("key", key), zap.Error(err))
		}
	}
	t = time.AfterFunc(c.cfg.RetryDelay, func() {
		c.mu.Lock()
		_, live := c.retries[t]
		delete(c.retries, t)
		c.mu.Unlock()
		if live {
			run()
		}
	})
	c.retries[t] = run
}

// write stores value unless a newer value for key has been accepted since seq was issued.
func (c *Coalescer) write(ctx context.Context, key string, value []byte, seq uint64) error {
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	current := c.latest[key]
	c.mu.Unlock()
	if current != seq {
		c.superseded.Add(1)
		return nil
	}

	if err := c.store.Set(ctx, key, value); err != nil {
		c.failed.Add(1)
		return err
	}
	c.written.Add(1)
	return nil
}

func (c *Coalescer) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}

func (c *Coalescer) onTimer() {
	c.mu.Lock()
	if c.processing {
		c.flushRequested = true
		c.mu.Unlock()
		return
	}
	c.beginCycleLocked()
	c.mu.Unlock()

	c.runCycle(context.Background())
}

func (c *Coalescer) beginCycleLocked() {
	c.processing = true
	c.idle = make(chan struct{})
}

// runCycle drains the pending map until no further flush was requested.
func (c *Coalescer) runCycle(ctx context.Context) {
	for {
		c.mu.Lock()
		batch := c.takePendingLocked()
		c.flushRequested = false
		c.mu.Unlock()

		if len(batch) > 0 {
			c.writeBatches(ctx, batch)
		}

		c.mu.Lock()
		if !c.flushRequested {
			c.processing = false
			close(c.idle)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

type queued struct {
	key   string
	value []byte
	seq   uint64
}

func (c *Coalescer) takePendingLocked() []queued {
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]queued, 0, len(c.pending))
	for k, e := range c.pending {
		e.timer.Stop()
		out = append(out, queued{key: k, value: e.value, seq: e.seq})
	}
	c.pending = make(map[string]*entry)
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (c *Coalescer) writeBatches(ctx context.Context, items []queued) {
	for start := 0; start < len(items); start += c.cfg.MaxBatchSize {
		if start > 0 && c.cfg.BatchPause > 0 {
			select {
			case <-time.After(c.cfg.BatchPause):
			case <-ctx.Done():
			}
		}

		end := min(start+c.cfg.MaxBatchSize, len(items))
		var g errgroup.Group
		for _, q := range items[start:end] {
			g.Go(func() error {
				if err := c.write(ctx, q.key, q.value, q.seq); err != nil {
					c.log.Error("Batched write failed", zap.String("key", q.key), zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

// Flush writes every pending value now, waiting for any running cycle first.
func (c *Coalescer) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.processing {
			c.beginCycleLocked()
			c.mu.Unlock()
			c.runCycle(ctx)
			return ctx.Err()
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close refuses further writes, runs outstanding immediate retries and drains the queue.
func (c *Coalescer) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var retries []func()
	for t, run := range c.retries {
		t.Stop()
		retries = append(retries, run)
	}
	c.retries = make(map[*time.Timer]func())
	c.mu.Unlock()

	for _, run := range retries {
		run()
	}
	return c.Flush(ctx)
}

// Pending lists keys waiting for their debounce window, sorted.
func (c *Coalescer) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats reports the pending count and cumulative counters.
func (c *Coalescer) Stats() Stats {
	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()

	return Stats{
		Pending:    pending,
		Written:    c.written.Load(),
		Failed:     c.failed.Load(),
		Retried:    c.retried.Load(),
		Superseded: c.superseded.Load(),
	}
}
