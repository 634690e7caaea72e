package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/cyphera/cyphera-wallet/internal/history"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// historyQuery resolves the cached query for the request's filters.
// It writes the error response itself and returns nil on failure.
func (s *Server) historyQuery(c *gin.Context) *history.Query {
	if s.deps.History == nil {
		sendError(c, http.StatusServiceUnavailable, "Transaction history is not configured", nil)
		return nil
	}

	var names []string
	if raw := c.Query("categories"); raw != "" {
		names = strings.Split(raw, ",")
	}
	cats, err := types.ParseCategories(names)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return nil
	}

	q, err := s.deps.History.Query(history.Filters{Categories: cats, FromBlock: c.Query("fromBlock")})
	if err != nil {
		handleServiceError(c, err, "Failed to open transaction history")
		return nil
	}
	return q
}

// historyContext detaches a fetch from the request. The query is shared by
// every caller, so one client hanging up must not fail it for the rest.
func historyContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// settled reports whether a fetch error still leaves a valid snapshot to
// return: the end of the history, or a page dropped by a concurrent refresh.
func settled(err error) bool {
	return err == nil || errors.Is(err, history.ErrNoMorePages) || errors.Is(err, history.ErrSuperseded)
}

// GetHistory returns the transfer history of the active account on the selected
// network, fetching the first page if the query has not run yet.
func (s *Server) GetHistory(c *gin.Context) {
	q := s.historyQuery(c)
	if q == nil {
		return
	}
	if err := q.Start(historyContext(c)); !settled(err) {
		handleServiceError(c, errors.Wrap(err, "first page"), "Failed to fetch transaction history")
		return
	}
	sendSuccess(c, http.StatusOK, q.Snapshot(c.Query("search")))
}

// LoadMoreHistory appends the next page. At the end of the history, or when a
// refresh discarded the page, it returns the current snapshot.
func (s *Server) LoadMoreHistory(c *gin.Context) {
	q := s.historyQuery(c)
	if q == nil {
		return
	}
	if err := q.LoadMore(historyContext(c)); !settled(err) {
		handleServiceError(c, err, "Failed to load more transactions")
		return
	}
	sendSuccess(c, http.StatusOK, q.Snapshot(c.Query("search")))
}

func (s *Server) RefreshHistory(c *gin.Context) {
	q := s.historyQuery(c)
	if q == nil {
		return
	}
	if err := q.Refresh(historyContext(c)); !settled(err) {
		handleServiceError(c, err, "Failed to refresh transaction history")
		return
	}
	sendSuccess(c, http.StatusOK, q.Snapshot(c.Query("search")))
}

func (s *Server) RetryHistory(c *gin.Context) {
	q := s.historyQuery(c)
	if q == nil {
		return
	}
	if err := q.Retry(historyContext(c)); !settled(err) {
		handleServiceError(c, err, "Retry failed")
		return
	}
	sendSuccess(c, http.StatusOK, q.Snapshot(c.Query("search")))
}

// GetHistoryStats summarises the loaded, search-filtered transfers.
func (s *Server) GetHistoryStats(c *gin.Context) {
	q := s.historyQuery(c)
	if q == nil {
		return
	}
	sendSuccess(c, http.StatusOK, q.Stats(c.Query("search")))
}
