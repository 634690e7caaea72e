package services

import (
	"context"
	"math/big"

	"github.com/cyphera/cyphera-wallet/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PriceSource returns USD spot prices keyed by upper-case symbol. Symbols the
// source does not know are omitted from the result.
type PriceSource interface {
	Name() string
	USDPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// TokenDataSource provides ERC-20 balances and metadata.
type TokenDataSource interface {
	GetTokenBalances(ctx context.Context, chainID int64, address string) (types.TokenBalancesResult, error)
	GetTokenMetadata(ctx context.Context, chainID int64, contract string) (types.TokenMetadata, error)
}

// BalanceReader reads native balances. *ethclient.Client implements it.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}
