package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/query"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTokenDecimals     = 18
	metadataFetchConcurrency = 4
)

// TokenService merges ERC-20 balances with token metadata and USD prices.
type TokenService struct {
	data   TokenDataSource
	prices *PriceService
	retry  query.RetryPolicy
	log    *zap.Logger

	mu       sync.RWMutex
	metadata map[string]types.TokenMetadata
}

// NewTokenService builds a token service. prices may be nil, in which case USD
// values are left empty.
func NewTokenService(data TokenDataSource, prices *PriceService, retry query.RetryPolicy) *TokenService {
	return &TokenService{
		data:     data,
		prices:   prices,
		retry:    retry,
		log:      logger.Named("tokens"),
		metadata: make(map[string]types.TokenMetadata),
	}
}

func metadataKey(chainID int64, contract string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(contract))
}

// Metadata returns token metadata, cached per chain and contract after the first success.
func (s *TokenService) Metadata(ctx context.Context, chainID int64, contract string) (types.TokenMetadata, error) {
	key := metadataKey(chainID, contract)
	s.mu.RLock()
	md, ok := s.metadata[key]
	s.mu.RUnlock()
	if ok {
		return md, nil
	}

	md, err := query.Do(ctx, s.retry, func(ctx context.Context) (types.TokenMetadata, error) {
		md, err := s.data.GetTokenMetadata(ctx, chainID, contract)
		return md, transient(err)
	})
	if err != nil {
		return types.TokenMetadata{}, err
	}

	s.mu.Lock()
	s.metadata[key] = md
	s.mu.Unlock()
	return md, nil
}

// Balances returns the non-zero ERC-20 holdings of address in provider order.
// Missing metadata degrades to the contract address and 18 decimals.
func (s *TokenService) Balances(ctx context.Context, chainID int64, address string) ([]types.TokenBalance, error) {
	if err := types.ValidateAddress(address); err != nil {
		return nil, err
	}

	res, err := query.Do(ctx, s.retry, func(ctx context.Context) (types.TokenBalancesResult, error) {
		res, err := s.data.GetTokenBalances(ctx, chainID, address)
		return res, transient(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token balances: %w", err)
	}

	held := make([]types.RawTokenBalance, 0, len(res.TokenBalances))
	for _, b := range res.TokenBalances {
		if b.Amount().Sign() > 0 {
			held = append(held, b)
		}
	}

	out := make([]types.TokenBalance, len(held))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataFetchConcurrency)
	for i, b := range held {
		g.Go(func() error {
			md, err := s.Metadata(gctx, chainID, b.ContractAddress)
			if err != nil {
				s.log.Warn("Failed to fetch token metadata",
					zap.Int64("chain_id", chainID),
					zap.String("contract", b.ContractAddress),
					zap.Error(err))
			}
			out[i] = s.merge(gctx, b, md)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Debug("Fetched token balances",
		zap.Int64("chain_id", chainID),
		zap.Int("reported", len(res.TokenBalances)),
		zap.Int("held", len(out)))
	return out, nil
}

func (s *TokenService) merge(ctx context.Context, b types.RawTokenBalance, md types.TokenMetadata) types.TokenBalance {
	raw := b.Amount()
	decimals := md.DecimalsOr(defaultTokenDecimals)
	tb := types.TokenBalance{
		ContractAddress: b.ContractAddress,
		Name:            md.Name,
		Symbol:          md.Symbol,
		Decimals:        decimals,
		RawBalance:      raw.String(),
		Balance:         types.ScaleAmount(raw, decimals),
	}
	if md.Logo != nil {
		tb.Logo = *md.Logo
	}
	if tb.Name == "" {
		tb.Name = b.ContractAddress
	}

	if s.prices != nil && tb.Symbol != "" {
		if price, err := s.prices.USDPrice(ctx, tb.Symbol); err == nil {
			v := tb.Balance.Mul(price)
			tb.USDValue = &v
		}
	}
	return tb
}

// PortfolioValue sums the USD value of balances that have one.
func PortfolioValue(balances []types.TokenBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		if b.USDValue != nil {
			total = total.Add(*b.USDValue)
		}
	}
	return total
}
