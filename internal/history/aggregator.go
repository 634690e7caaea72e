package history

import (
	"context"
	"sync"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/query"
	"github.com/cyphera/cyphera-wallet/internal/state"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"go.uber.org/zap"
)

// DefaultStaleTime is how long fetched pages count as fresh for Poll.
const DefaultStaleTime = 30 * time.Second

// Filters are the server-side parameters a caller may choose.
type Filters struct {
	Categories []types.TransferCategory
	FromBlock  string
}

// Aggregator hands out one Query per account, network and filter set, reading
// the active account and selected network from the state store.
type Aggregator struct {
	fetcher   TransfersFetcher
	state     *state.Store
	policy    query.RetryPolicy
	staleTime time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu      sync.Mutex
	queries map[string]*Query
	unsubs  []func()
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

func WithAggregatorRetryPolicy(p query.RetryPolicy) AggregatorOption {
	return func(a *Aggregator) { a.policy = p }
}

// WithAggregatorLogger sets the logger handed to the aggregator and its queries.
func WithAggregatorLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.log = l }
}

func WithStaleTime(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.staleTime = d }
}

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(fetcher TransfersFetcher, st *state.Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher:   fetcher,
		state:     st,
		policy:    query.DefaultRetryPolicy(),
		staleTime: DefaultStaleTime,
		now:       time.Now,
		queries:   make(map[string]*Query),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logger.OrGlobal(a.log, "history")
	return a
}

// ParamsFor builds query params for the active account on the selected network.
func (a *Aggregator) ParamsFor(f Filters) (Params, error) {
	st := a.state.Get()
	if st.ActiveAccount == nil || st.ActiveAccount.Address == "" {
		return Params{}, ErrNoAddress
	}
	cats := f.Categories
	if len(cats) == 0 {
		cats = types.AllCategories
	}
	return Params{
		Address:      st.ActiveAccount.Address,
		ChainID:      st.SelectedNetwork.ChainID(),
		Categories:   cats,
		FromBlock:    f.FromBlock,
		NativeSymbol: st.SelectedNetwork.Currency().Symbol,
	}, nil
}

// Query returns the cached query for f, creating an idle one on first use.
func (a *Aggregator) Query(f Filters) (*Query, error) {
	params, err := a.ParamsFor(f)
	if err != nil {
		return nil, err
	}
	key := params.Key()

	a.mu.Lock()
	defer a.mu.Unlock()
	if q, ok := a.queries[key]; ok {
		return q, nil
	}
	q := NewQuery(params, a.fetcher, WithRetryPolicy(a.policy), WithClock(a.now), WithLogger(a.log))
	a.queries[key] = q
	return q, nil
}

// Open returns the query for f and starts it if it has never fetched.
func (a *Aggregator) Open(ctx context.Context, f Filters) (*Query, error) {
	q, err := a.Query(f)
	if err != nil {
		return nil, err
	}
	if err := q.Start(ctx); err != nil {
		return q, err
	}
	return q, nil
}

// Invalidate drops every cached query.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	n := len(a.queries)
	a.queries = make(map[string]*Query)
	a.mu.Unlock()
	if n > 0 {
		a.log.Debug("Invalidated history queries", zap.Int("count", n))
	}
}

// Len is the number of cached queries.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queries)
}

// Start invalidates cached queries whenever the active account or selected network changes.
func (a *Aggregator) Start() {
	unsubs := []func(){
		state.Subscribe(a.state, func(st state.State) string { return st.ActiveAccountID() },
			state.Equal[string], func(_, _ string) { a.Invalidate() }),
		state.Subscribe(a.state, func(st state.State) int64 { return st.SelectedNetwork.ChainID() },
			state.Equal[int64], func(_, _ int64) { a.Invalidate() }),
	}
	a.mu.Lock()
	a.unsubs = append(a.unsubs, unsubs...)
	a.mu.Unlock()
}

func (a *Aggregator) Stop() {
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// Poll refetches stale successful queries every interval until ctx is done.
func (a *Aggregator) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refetchStale(ctx)
		}
	}
}

func (a *Aggregator) refetchStale(ctx context.Context) {
	a.mu.Lock()
	queries := make([]*Query, 0, len(a.queries))
	for _, q := range a.queries {
		queries = append(queries, q)
	}
	a.mu.Unlock()

	for _, q := range queries {
		if q.Status() != StatusSuccess || a.now().Sub(q.UpdatedAt()) < a.staleTime {
			continue
		}
		if err := q.Refetch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("Failed to refetch history", zap.String("query", q.Params().Key()), zap.Error(err))
		}
	}
}
