package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/constants"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/state"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationIDHeader = constants.CorrelationIDHeader
	correlationIDKey    = constants.CorrelationIDKey
)

type contextKey string

const correlationIDContextKey contextKey = "correlationID"

// CorrelationIDMiddleware ensures every request has a correlation ID
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(correlationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)
		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}

// GetCorrelationID retrieves the correlation ID from the Gin context
func GetCorrelationID(c *gin.Context) string {
	if id, exists := c.Get(correlationIDKey); exists {
		if correlationID, ok := id.(string); ok {
			return correlationID
		}
	}
	return ""
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// RequestLoggingMiddleware logs every completed request, at warn for client
// errors and at error for server errors.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if shouldSkipLogging(c.Request.URL.Path) {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("correlation_id", GetCorrelationID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}

func shouldSkipLogging(path string) bool {
	return path == "/api/v1/health"
}

// RequireReady rejects requests with 503 until the state store has been hydrated.
func RequireReady(st *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !st.Ready() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:         "Wallet state is still loading",
				CorrelationID: GetCorrelationID(c),
			})
			return
		}
		c.Next()
	}
}

// CORSConfig lists the allowed origins and headers for the local API.
type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
}

// configureCORS returns a configured CORS middleware
func configureCORS(cfg CORSConfig) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{CorrelationIDHeader}
	corsConfig.AllowCredentials = cfg.AllowCredentials
	return cors.New(corsConfig)
}
