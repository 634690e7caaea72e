package server

import (
	"context"
	"net/http"

	"github.com/cyphera/cyphera-wallet/internal/client/alchemy"
	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/history"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ListResponse wraps a list payload
type ListResponse struct {
	Object string      `json:"object"`
	Data   interface{} `json:"data"`
}

// sendError logs the error and sends a JSON error response
func sendError(c *gin.Context, statusCode int, message string, err error) {
	correlationID := GetCorrelationID(c)

	log := logger.Log.Warn
	if statusCode >= http.StatusInternalServerError {
		log = logger.Log.Error
	}
	log(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("correlation_id", correlationID),
	)

	c.JSON(statusCode, ErrorResponse{Error: message, CorrelationID: correlationID})
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendSuccessMessage is a helper function that sends a success message
func sendSuccessMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, SuccessResponse{Message: message})
}

// sendList is a helper function that sends a list response
func sendList(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, ListResponse{Object: "list", Data: items})
}

// isUpstream reports whether err came from a provider after retries ran out.
func isUpstream(err error) bool {
	var httpErr *httpClient.HTTPError
	var rpcErr *alchemy.RPCError
	return errors.As(err, &httpErr) || errors.As(err, &rpcErr) || httpClient.IsRetryable(err)
}

// handleServiceError maps service and provider errors onto HTTP status codes
func handleServiceError(c *gin.Context, err error, message string) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, history.ErrNoAddress):
		sendError(c, http.StatusBadRequest, "No active account", err)
	case errors.Is(err, alchemy.ErrUnsupportedChain), errors.Is(err, services.ErrNoRPCURL):
		sendError(c, http.StatusBadRequest, "Network is not supported", err)
	case errors.Is(err, history.ErrFetchInProgress), errors.Is(err, history.ErrNotFailed):
		sendError(c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, services.ErrPriceUnavailable):
		sendError(c, http.StatusNotFound, "Price unavailable", err)
	case errors.Is(err, context.Canceled):
		sendError(c, http.StatusServiceUnavailable, "Request cancelled", err)
	case isUpstream(err):
		sendError(c, http.StatusBadGateway, message, err)
	default:
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
