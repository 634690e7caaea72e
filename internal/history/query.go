package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/query"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"go.uber.org/zap"
)

var (
	ErrNoAddress       = errors.New("history: no address available")
	ErrFetchInProgress = errors.New("history: a page fetch is already in progress")
	ErrNoMorePages     = errors.New("history: no more pages")
	ErrNotFailed       = errors.New("history: query is not in an error state")
	// ErrSuperseded is returned by a fetch whose result was discarded by a refresh.
	ErrSuperseded = errors.New("history: fetch superseded by refresh")
)

// Status is the lifecycle state of a Query.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Params identifies a history query. Categories and FromBlock are sent to the
// provider; search is applied after fetching and is not part of Params.
type Params struct {
	Address      string
	ChainID      int64
	Categories   []types.TransferCategory
	FromBlock    string
	NativeSymbol string
}

// Key is the cache key of the query, stable for equal params.
func (p Params) Key() string {
	cats := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		cats = append(cats, string(c))
	}
	if len(cats) == 0 {
		cats = append(cats, "all")
	}
	from := p.FromBlock
	if from == "" {
		from = types.DefaultFromBlock
	}
	return fmt.Sprintf("transactionHistory/history/%s/%d/infinite/%s/%s",
		strings.ToLower(p.Address), p.ChainID, strings.Join(cats, ","), from)
}

// Page is one fetched provider page.
type Page struct {
	Transfers []types.Transfer
	PageKey   string
}

// Snapshot is a consistent view of a query for rendering.
type Snapshot struct {
	Key         string           `json:"key"`
	Status      Status           `json:"status"`
	Transfers   []types.Transfer `json:"transfers"`
	HasNextPage bool             `json:"hasNextPage"`
	PageCount   int              `json:"pageCount"`
	IsFetching  bool             `json:"isFetching"`
	SearchQuery string           `json:"searchQuery,omitempty"`
	Error       string           `json:"error,omitempty"`
	UpdatedAt   int64            `json:"updatedAt,omitempty"`
}

// Query is one paginated transfer history. Page fetches are strictly sequential
// and pages are only ever appended, except by Refresh and Refetch which replace them.
type Query struct {
	params  Params
	fetcher TransfersFetcher
	policy  query.RetryPolicy
	now     func() time.Time
	log     *zap.Logger

	mu         sync.Mutex
	status     Status
	pages      []Page
	cursor     string
	hasNext    bool
	fetching   bool
	failedKey  string
	err        error
	generation uint64
	updatedAt  time.Time
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithRetryPolicy replaces the default retry policy for page fetches.
func WithRetryPolicy(p query.RetryPolicy) QueryOption {
	return func(q *Query) { q.policy = p }
}

// WithClock sets the time source for UpdatedAt.
func WithClock(now func() time.Time) QueryOption {
	return func(q *Query) { q.now = now }
}

// WithLogger sets the query logger. The query key is added as a field.
func WithLogger(l *zap.Logger) QueryOption {
	return func(q *Query) { q.log = l }
}

// NewQuery builds an idle query.
func NewQuery(params Params, fetcher TransfersFetcher, opts ...QueryOption) *Query {
	q := &Query{
		params:  params,
		fetcher: fetcher,
		policy:  query.DefaultRetryPolicy(),
		now:     time.Now,
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = logger.OrGlobal(q.log, "history").With(zap.String("query", params.Key()))
	return q
}

func (q *Query) Params() Params { return q.params }

// Start fetches the first page. It is a no-op once the query has left Idle.
func (q *Query) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.status != StatusIdle {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()
	return q.fetch(ctx, "", false)
}

// LoadMore fetches the page after the last one. From Idle it fetches the first page.
// Once the provider returned no cursor it returns ErrNoMorePages without fetching.
func (q *Query) LoadMore(ctx context.Context) error {
	q.mu.Lock()
	status, hasNext, cursor := q.status, q.hasNext, q.cursor
	fetching := q.fetching
	q.mu.Unlock()

	switch {
	case fetching:
		return ErrFetchInProgress
	case status == StatusIdle:
		return q.fetch(ctx, "", false)
	case status == StatusError:
		return q.Retry(ctx)
	case !hasNext:
		return ErrNoMorePages
	}
	return q.fetch(ctx, cursor, true)
}

// Retry repeats the failed fetch with the same cursor.
func (q *Query) Retry(ctx context.Context) error {
	q.mu.Lock()
	if q.status != StatusError {
		q.mu.Unlock()
		return ErrNotFailed
	}
	key := q.failedKey
	q.mu.Unlock()
	return q.fetch(ctx, key, key != "")
}

// Refresh discards every page and the cursor and fetches the first page again.
// Results of fetches started before the refresh are dropped.
func (q *Query) Refresh(ctx context.Context) error {
	q.mu.Lock()
	q.generation++
	q.pages = nil
	q.cursor = ""
	q.hasNext = false
	q.fetching = false
	q.failedKey = ""
	q.err = nil
	q.status = StatusIdle
	q.mu.Unlock()

	q.log.Debug("Refreshing transfer history")
	return q.fetch(ctx, "", false)
}

func (q *Query) fetch(ctx context.Context, pageKey string, requireKey bool) error {
	if q.params.Address == "" {
		return ErrNoAddress
	}
	if requireKey && pageKey == "" {
		return ErrNoMorePages
	}

	q.mu.Lock()
	if q.fetching {
		q.mu.Unlock()
		return ErrFetchInProgress
	}
	q.fetching = true
	prev := q.status
	q.status = StatusFetching
	gen := q.generation
	q.mu.Unlock()

	page, err := q.fetchPage(ctx, pageKey)

	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.generation {
		q.log.Debug("Dropping page fetched before refresh", zap.String("page_key", pageKey))
		return ErrSuperseded
	}
	q.fetching = false

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// The caller went away; the query did not fail.
		q.status = prev
		q.log.Debug("Transfer fetch cancelled by caller", zap.String("page_key", pageKey))
		return err
	}
	if err != nil {
		q.status = StatusError
		q.err = err
		q.failedKey = pageKey
		q.log.Warn("Failed to fetch transfer history", zap.String("page_key", pageKey), zap.Error(err))
		return err
	}

	q.pages = append(q.pages, Page{Transfers: page.Transfers, PageKey: page.PageKey})
	q.cursor = page.PageKey
	q.hasNext = page.HasMore()
	q.status = StatusSuccess
	q.err = nil
	q.failedKey = ""
	q.updatedAt = q.now()
	return nil
}

// fetchPage requests one page, retrying transient failures.
func (q *Query) fetchPage(ctx context.Context, pageKey string) (types.TransfersPage, error) {
	req := types.NewAssetTransfersRequest(q.params.Address, q.params.Categories, q.params.FromBlock, pageKey)
	return query.Do(ctx, q.policy, func(ctx context.Context) (types.TransfersPage, error) {
		page, err := q.fetcher.GetAssetTransfers(ctx, q.params.ChainID, req)
		if err != nil && !httpClient.IsRetryable(err) {
			return page, query.Permanent(err)
		}
		return page, err
	}, func(err error, wait time.Duration) {
		q.log.Info("Retrying transfer fetch", zap.Error(err), zap.Duration("wait", wait))
	})
}

// Refetch reloads as many pages as are currently held and swaps them in at once.
// On failure the current pages are kept.
func (q *Query) Refetch(ctx context.Context) error {
	q.mu.Lock()
	if q.status != StatusSuccess || q.fetching {
		q.mu.Unlock()
		return nil
	}
	want := len(q.pages)
	gen := q.generation
	q.fetching = true
	q.mu.Unlock()

	var (
		pages  []Page
		cursor string
		err    error
	)
	for i := 0; i < want; i++ {
		var page types.TransfersPage
		page, err = q.fetchPage(ctx, cursor)
		if err != nil {
			break
		}
		pages = append(pages, Page{Transfers: page.Transfers, PageKey: page.PageKey})
		cursor = page.PageKey
		if !page.HasMore() {
			break
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.generation {
		return ErrSuperseded
	}
	q.fetching = false
	if err != nil {
		q.log.Warn("Background refetch failed, keeping current pages", zap.Error(err))
		return err
	}
	q.pages = pages
	q.cursor = cursor
	q.hasNext = cursor != ""
	q.updatedAt = q.now()
	return nil
}

// Transfers returns all pages flattened in arrival order, filtered by search.
// The filter applies to this read only and never triggers a fetch.
func (q *Query) Transfers(search string) []types.Transfer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.transfersLocked(search)
}

func (q *Query) transfersLocked(search string) []types.Transfer {
	var all []types.Transfer
	for _, p := range q.pages {
		all = append(all, p.Transfers...)
	}
	if all == nil {
		all = []types.Transfer{}
	}
	return FilterTransfers(all, search)
}

// Status returns the current lifecycle state.
func (q *Query) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// UpdatedAt is when the last page was stored, zero before the first success.
func (q *Query) UpdatedAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.updatedAt
}

// Snapshot returns status, transfers filtered by search and paging info in one
// consistent read.
func (q *Query) Snapshot(search string) Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{
		Key:         q.params.Key(),
		Status:      q.status,
		Transfers:   q.transfersLocked(search),
		HasNextPage: q.hasNext,
		PageCount:   len(q.pages),
		IsFetching:  q.fetching,
		SearchQuery: search,
	}
	if q.err != nil {
		s.Error = q.err.Error()
	}
	if !q.updatedAt.IsZero() {
		s.UpdatedAt = q.updatedAt.UnixMilli()
	}
	return s
}

// Stats summarises the transfers matching search.
func (q *Query) Stats(search string) Stats {
	return ComputeStats(q.Transfers(search), q.params.NativeSymbol, q.params.Address)
}
