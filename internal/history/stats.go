package history

import (
	"strings"

	"github.com/axiomhq/hyperloglog"
	"github.com/shopspring/decimal"

	"github.com/cyphera/cyphera-wallet/internal/types"
)

// Stats summarises a list of transfers.
type Stats struct {
	TotalTransactions    int                            `json:"totalTransactions"`
	TotalValue           decimal.Decimal                `json:"totalValue"`
	NativeAsset          string                         `json:"nativeAsset"`
	Categories           map[types.TransferCategory]int `json:"categories"`
	Assets               map[string]int                 `json:"assets"`
	UniqueCounterparties uint64                         `json:"uniqueCounterparties"`
}

// ComputeStats counts transfers per category and asset, sums the value of
// native-asset transfers and estimates how many distinct addresses owner dealt with.
func ComputeStats(transfers []types.Transfer, nativeAsset, owner string) Stats {
	stats := Stats{
		TotalTransactions: len(transfers),
		TotalValue:        decimal.Zero,
		NativeAsset:       nativeAsset,
		Categories:        make(map[types.TransferCategory]int),
		Assets:            make(map[string]int),
	}
	owner = strings.ToLower(owner)
	counterparties := hyperloglog.New14()

	for _, t := range transfers {
		stats.Categories[t.Category]++
		stats.Assets[t.Asset]++

		if t.Asset == nativeAsset && t.Value.Valid {
			stats.TotalValue = stats.TotalValue.Add(t.Value.Decimal)
		}

		other := strings.ToLower(t.From)
		if other == owner {
			other = strings.ToLower(t.To)
		}
		if other != "" && other != owner {
			counterparties.Insert([]byte(other))
		}
	}

	stats.UniqueCounterparties = counterparties.Estimate()
	return stats
}
