// Package server exposes the wallet state, history and asset queries over a
// local HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/history"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/services"
	"github.com/cyphera/cyphera-wallet/internal/state"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	AllowMainnet    bool
	CORS            CORSConfig
	ShutdownTimeout time.Duration
}

// Deps are the components the handlers read from and mutate. History, Tokens,
// Balances and Prices may be nil when their provider is not configured.
type Deps struct {
	State    *state.Store
	Registry *network.Registry
	History  *history.Aggregator
	Tokens   *services.TokenService
	Balances *services.BalanceService
	Prices   *services.PriceService
}

// Server is the local wallet API.
type Server struct {
	cfg    Config
	deps   Deps
	router *gin.Engine
	now    func() time.Time
}

func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, deps: deps, now: time.Now}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.InitializeRoutes(s.router)
	return s
}

// Router returns the configured gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS(s.cfg.CORS))
	router.Use(CorrelationIDMiddleware())
	router.Use(RequestLoggingMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.Health)

		ready := v1.Group("/")
		ready.Use(RequireReady(s.deps.State))
		{
			ready.GET("/state", s.GetState)
			ready.PUT("/network", s.SelectNetwork)
			ready.PUT("/network-type", s.SetNetworkType)
			ready.PUT("/theme", s.SetTheme)
			ready.PUT("/lock", s.SetLock)
			ready.PUT("/gas-sponsorship", s.SetGasSponsorship)

			accounts := ready.Group("/accounts")
			{
				accounts.GET("", s.ListAccounts)
				accounts.POST("", s.CreateAccount)
				accounts.PUT("/active", s.SetActiveAccount)
			}

			custom := ready.Group("/networks/custom")
			{
				custom.GET("", s.ListCustomNetworks)
				custom.POST("", s.CreateCustomNetwork)
				custom.DELETE("/:id", s.DeleteCustomNetwork)
			}

			hist := ready.Group("/history")
			{
				hist.GET("", s.GetHistory)
				hist.POST("/load-more", s.LoadMoreHistory)
				hist.POST("/refresh", s.RefreshHistory)
				hist.POST("/retry", s.RetryHistory)
				hist.GET("/stats", s.GetHistoryStats)
			}

			ready.GET("/tokens", s.GetTokens)
			ready.GET("/balance", s.GetBalance)
			ready.GET("/price/:symbol", s.GetPrice)
		}
	}
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting local API", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "local API stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down local API")
	}
	return nil
}

// Health reports liveness and whether hydration has completed.
func (s *Server) Health(c *gin.Context) {
	sendSuccess(c, http.StatusOK, gin.H{
		"status": "ok",
		"ready":  s.deps.State.Ready(),
	})
}
