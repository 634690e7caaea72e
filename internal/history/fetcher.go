// Package history aggregates paginated asset transfers for the active account
// and network into one append-only, client-side filterable list.
package history

import (
	"context"

	"github.com/cyphera/cyphera-wallet/internal/types"
)

// TransfersFetcher fetches one page of asset transfers. The Alchemy client implements it.
type TransfersFetcher interface {
	GetAssetTransfers(ctx context.Context, chainID int64, req types.AssetTransfersRequest) (types.TransfersPage, error)
}
