package history

import (
	"strings"

	"github.com/cyphera/cyphera-wallet/internal/helpers"
	"github.com/cyphera/cyphera-wallet/internal/types"
)

// FilterTransfers keeps transfers whose hash, from, to, asset or value contains
// search, case-insensitively. A blank search returns transfers unchanged.
func FilterTransfers(transfers []types.Transfer, search string) []types.Transfer {
	q := helpers.NormalizeQuery(search)
	if q == "" {
		return transfers
	}

	out := make([]types.Transfer, 0, len(transfers))
	for _, t := range transfers {
		if matches(t, q) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t types.Transfer, q string) bool {
	for _, field := range []string{t.Hash, t.From, t.To, t.Asset} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return strings.Contains(t.ValueString(), q)
}
