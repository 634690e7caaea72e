package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/query"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrPriceUnavailable is returned when no source knows the symbol.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceConfig holds the price query policy.
type PriceConfig struct {
	StaleTime       time.Duration
	RefetchInterval time.Duration
	Retry           query.RetryPolicy
}

func DefaultPriceConfig() PriceConfig {
	return PriceConfig{
		StaleTime:       30 * time.Second,
		RefetchInterval: 60 * time.Second,
		Retry:           query.DefaultRetryPolicy(),
	}
}

// PriceService serves cached USD prices, asking each source in order until one
// knows the symbol.
type PriceService struct {
	sources []PriceSource
	cfg     PriceConfig
	log     *zap.Logger

	mu     sync.Mutex
	caches map[string]*query.Cached[decimal.Decimal]
}

func NewPriceService(cfg PriceConfig, sources ...PriceSource) *PriceService {
	return &PriceService{
		sources: sources,
		cfg:     cfg,
		log:     logger.Named("prices"),
		caches:  make(map[string]*query.Cached[decimal.Decimal]),
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *PriceService) cache(symbol string) *query.Cached[decimal.Decimal] {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[symbol]
	if !ok {
		c = query.NewCached(func(ctx context.Context) (decimal.Decimal, error) {
			return s.fetch(ctx, symbol)
		}, s.cfg.StaleTime, query.WithRetryPolicy[decimal.Decimal](s.cfg.Retry), query.WithLogger[decimal.Decimal](s.log))
		s.caches[symbol] = c
	}
	return c
}

func (s *PriceService) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var errs []error
	for _, src := range s.sources {
		prices, err := src.USDPrices(ctx, []string{symbol})
		if err != nil {
			s.log.Warn("Price source failed", zap.String("source", src.Name()), zap.String("symbol", symbol), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if p, ok := prices[symbol]; ok {
			return p, nil
		}
	}
	if len(errs) > 0 {
		return decimal.Zero, transient(errors.Join(errs...))
	}
	return decimal.Zero, query.Permanent(fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol))
}

// USDPrice returns the USD price of symbol, refetching when older than the stale time.
// The symbol is then kept fresh by Run.
func (s *PriceService) USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("%w: empty symbol", ErrPriceUnavailable)
	}
	return s.cache(symbol).Get(ctx)
}

// USDValue converts a raw integer amount with the given decimals to USD.
func (s *PriceService) USDValue(ctx context.Context, raw *big.Int, decimals int, symbol string) (decimal.Decimal, error) {
	price, err := s.USDPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return types.ScaleAmount(raw, decimals).Mul(price), nil
}

// Tracked lists the symbols with a cache entry.
func (s *PriceService) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.caches))
	for sym := range s.caches {
		out = append(out, sym)
	}
	return out
}

// Run refetches every tracked symbol each refetch interval until ctx is done.
func (s *PriceService) Run(ctx context.Context) {
	if s.cfg.RefetchInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.RefetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *PriceService) refreshAll(ctx context.Context) {
	s.mu.Lock()
	caches := make(map[string]*query.Cached[decimal.Decimal], len(s.caches))
	for sym, c := range s.caches {
		caches[sym] = c
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for sym, c := range caches {
		g.Go(func() error {
			if _, err := c.Refetch(gctx); err != nil && gctx.Err() == nil {
				s.log.Warn("Failed to refresh price", zap.String("symbol", sym), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
