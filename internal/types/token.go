package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// RawTokenBalance is a provider balance entry; TokenBalance is hex encoded.
type RawTokenBalance struct {
	ContractAddress string  `json:"contractAddress"`
	TokenBalance    string  `json:"tokenBalance"`
	Error           *string `json:"error,omitempty"`
}

// Amount decodes the hex balance. Malformed or errored entries decode to zero.
func (b RawTokenBalance) Amount() *big.Int {
	if b.Error != nil || b.TokenBalance == "" {
		return new(big.Int)
	}
	v, err := hexutil.DecodeBig(trimLeadingZeros(b.TokenBalance))
	if err != nil {
		return new(big.Int)
	}
	return v
}

// Providers pad balances to 32 bytes, which hexutil rejects as leading zeros.
func trimLeadingZeros(h string) string {
	if len(h) < 2 || h[:2] != "0x" {
		return h
	}
	digits := h[2:]
	i := 0
	for i < len(digits)-1 && digits[i] == '0' {
		i++
	}
	return "0x" + digits[i:]
}

// TokenBalancesResult is the result object of alchemy_getTokenBalances.
type TokenBalancesResult struct {
	Address       string            `json:"address"`
	TokenBalances []RawTokenBalance `json:"tokenBalances"`
	PageKey       string            `json:"pageKey,omitempty"`
}

// TokenMetadata is the result of alchemy_getTokenMetadata.
type TokenMetadata struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Decimals *int    `json:"decimals"`
	Logo     *string `json:"logo"`
}

// DecimalsOr returns Decimals or def when the provider did not know them.
func (m TokenMetadata) DecimalsOr(def int) int {
	if m.Decimals == nil {
		return def
	}
	return *m.Decimals
}

// TokenBalance is a balance merged with its metadata.
type TokenBalance struct {
	ContractAddress string           `json:"contractAddress"`
	Name            string           `json:"name"`
	Symbol          string           `json:"symbol"`
	Decimals        int              `json:"decimals"`
	Logo            string           `json:"logo,omitempty"`
	RawBalance      string           `json:"rawBalance"`
	Balance         decimal.Decimal  `json:"balance"`
	USDValue        *decimal.Decimal `json:"usdValue,omitempty"`
}

// ScaleAmount converts a raw integer amount into units with the given decimals.
func ScaleAmount(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, int32(-decimals))
}
