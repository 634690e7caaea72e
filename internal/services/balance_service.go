package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/query"
	"github.com/cyphera/cyphera-wallet/internal/state"
	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoRPCURL is returned for networks without an RPC endpoint.
var ErrNoRPCURL = errors.New("network has no RPC URL")

// Dialer opens a BalanceReader for an RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (BalanceReader, error)

// DialEthClient dials an Ethereum JSON-RPC endpoint with go-ethereum's ethclient.
func DialEthClient(ctx context.Context, rpcURL string) (BalanceReader, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NativeBalance is the native-currency balance of an address on one network.
type NativeBalance struct {
	ChainID  int64            `json:"chainId"`
	Address  string           `json:"address"`
	Symbol   string           `json:"symbol"`
	Decimals int              `json:"decimals"`
	Wei      string           `json:"wei"`
	Balance  decimal.Decimal  `json:"balance"`
	USDValue *decimal.Decimal `json:"usdValue,omitempty"`
}

// BalanceService reads native balances over each network's own RPC endpoint,
// custom networks included, and caches them for the stale time.
type BalanceService struct {
	dial      Dialer
	prices    *PriceService
	retry     query.RetryPolicy
	staleTime time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	readers map[string]BalanceReader
	caches  map[string]*query.Cached[NativeBalance]
}

func NewBalanceService(dial Dialer, prices *PriceService, retry query.RetryPolicy, staleTime time.Duration) *BalanceService {
	if dial == nil {
		dial = DialEthClient
	}
	return &BalanceService{
		dial:      dial,
		prices:    prices,
		retry:     retry,
		staleTime: staleTime,
		log:       logger.Named("balances"),
		readers:   make(map[string]BalanceReader),
		caches:    make(map[string]*query.Cached[NativeBalance]),
	}
}

func (s *BalanceService) reader(ctx context.Context, rpcURL string) (BalanceReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.readers[rpcURL]; ok {
		return r, nil
	}
	r, err := s.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}
	s.readers[rpcURL] = r
	return r, nil
}

// NativeBalance returns the native balance of address on n.
func (s *BalanceService) NativeBalance(ctx context.Context, n network.Network, address string) (NativeBalance, error) {
	if err := types.ValidateAddress(address); err != nil {
		return NativeBalance{}, err
	}
	if n.RPCURL() == "" {
		return NativeBalance{}, fmt.Errorf("%w: chain %d", ErrNoRPCURL, n.ChainID())
	}
	return s.cache(n, address).Get(ctx)
}

func (s *BalanceService) cache(n network.Network, address string) *query.Cached[NativeBalance] {
	key := fmt.Sprintf("%d:%s:%s", n.ChainID(), n.RPCURL(), strings.ToLower(address))

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[key]
	if !ok {
		c = query.NewCached(func(ctx context.Context) (NativeBalance, error) {
			return s.fetch(ctx, n, address)
		}, s.staleTime, query.WithRetryPolicy[NativeBalance](s.retry), query.WithLogger[NativeBalance](s.log))
		s.caches[key] = c
	}
	return c
}

func (s *BalanceService) fetch(ctx context.Context, n network.Network, address string) (NativeBalance, error) {
	r, err := s.reader(ctx, n.RPCURL())
	if err != nil {
		return NativeBalance{}, err
	}
	wei, err := r.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return NativeBalance{}, transient(err)
	}

	cur := n.Currency()
	return NativeBalance{
		ChainID:  n.ChainID(),
		Address:  address,
		Symbol:   cur.Symbol,
		Decimals: cur.Decimals,
		Wei:      wei.String(),
		Balance:  types.ScaleAmount(wei, cur.Decimals),
	}, nil
}

// BalanceWithUSD is NativeBalance plus its USD value when a price is available.
func (s *BalanceService) BalanceWithUSD(ctx context.Context, n network.Network, address string) (NativeBalance, error) {
	b, err := s.NativeBalance(ctx, n, address)
	if err != nil || s.prices == nil {
		return b, err
	}
	price, err := s.prices.USDPrice(ctx, b.Symbol)
	if err != nil {
		s.log.Debug("No USD price for native currency", zap.String("symbol", b.Symbol), zap.Error(err))
		return b, nil
	}
	v := b.Balance.Mul(price)
	b.USDValue = &v
	return b, nil
}

// Invalidate marks every cached balance stale.
func (s *BalanceService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.caches {
		c.Invalidate()
	}
}

// Watch invalidates cached balances whenever the state store's balance version
// is bumped. It returns the unsubscribe function.
func (s *BalanceService) Watch(st *state.Store) func() {
	return state.Subscribe(st, func(st state.State) uint64 { return st.BalanceVersion },
		state.Equal[uint64], func(_, _ uint64) { s.Invalidate() })
}

// Close closes every dialed client.
func (s *BalanceService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for url, r := range s.readers {
		if c, ok := r.(interface{ Close() }); ok {
			c.Close()
		}
		delete(s.readers, url)
	}
}
