package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// TransferCategory is the provider's classification of a transfer.
type TransferCategory string

const (
	CategoryExternal TransferCategory = "external"
	CategoryInternal TransferCategory = "internal"
	CategoryERC20    TransferCategory = "erc20"
	CategoryERC721   TransferCategory = "erc721"
	CategoryERC1155  TransferCategory = "erc1155"
)

// AllCategories is used whenever a request omits categories.
var AllCategories = []TransferCategory{
	CategoryExternal,
	CategoryInternal,
	CategoryERC20,
	CategoryERC721,
	CategoryERC1155,
}

var categoryLabels = map[TransferCategory]string{
	CategoryExternal: "Transfer",
	CategoryInternal: "Internal",
	CategoryERC20:    "Token",
	CategoryERC721:   "NFT",
	CategoryERC1155:  "Multi-Token",
}

// Label is a human readable category name.
func (c TransferCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategories validates a list of category names. An empty list yields AllCategories.
func ParseCategories(names []string) ([]TransferCategory, error) {
	var out []TransferCategory
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		c := TransferCategory(n)
		if _, ok := categoryLabels[c]; !ok {
			return nil, fmt.Errorf("invalid transfer category %q", n)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return append([]TransferCategory(nil), AllCategories...), nil
	}
	return out, nil
}

// RawContract is the undecoded on-chain amount and token contract.
type RawContract struct {
	Value   string  `json:"value"`
	Address *string `json:"address"`
	Decimal string  `json:"decimal"`
}

// TransferMetadata is only populated when withMetadata was requested.
type TransferMetadata struct {
	BlockTimestamp string `json:"blockTimestamp"`
}

// Transfer is one transfer unit as returned by the provider. Immutable once fetched.
type Transfer struct {
	BlockNum    string              `json:"blockNum"`
	UniqueID    string              `json:"uniqueId"`
	Hash        string              `json:"hash"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Value       decimal.NullDecimal `json:"value"`
	Asset       string              `json:"asset"`
	Category    TransferCategory    `json:"category"`
	RawContract RawContract         `json:"rawContract"`
	TokenID     *string             `json:"tokenId,omitempty"`
	Metadata    *TransferMetadata   `json:"metadata,omitempty"`
}

// BlockNumber decodes BlockNum.
func (t Transfer) BlockNumber() (uint64, error) {
	return hexutil.DecodeUint64(t.BlockNum)
}

// RawValue decodes the raw contract value, zero when absent.
func (t Transfer) RawValue() (*big.Int, error) {
	if t.RawContract.Value == "" || t.RawContract.Value == "0x" {
		return new(big.Int), nil
	}
	return hexutil.DecodeBig(t.RawContract.Value)
}

// ValueString stringifies the decoded value the way it is shown and searched.
func (t Transfer) ValueString() string {
	if !t.Value.Valid {
		return ""
	}
	return t.Value.Decimal.String()
}

// AssetTransfersRequest is the single params object of alchemy_getAssetTransfers.
type AssetTransfersRequest struct {
	FromBlock        string             `json:"fromBlock"`
	ToBlock          string             `json:"toBlock,omitempty"`
	FromAddress      string             `json:"fromAddress,omitempty"`
	ToAddress        string             `json:"toAddress,omitempty"`
	ExcludeZeroValue bool               `json:"excludeZeroValue"`
	WithMetadata     bool               `json:"withMetadata"`
	Category         []TransferCategory `json:"category"`
	PageKey          string             `json:"pageKey,omitempty"`
	MaxCount         string             `json:"maxCount"`
}

const (
	DefaultFromBlock = "0x0"
	DefaultMaxCount  = 100
)

// NewAssetTransfersRequest fills in the defaults used for history pages.
func NewAssetTransfersRequest(toAddress string, categories []TransferCategory, fromBlock, pageKey string) AssetTransfersRequest {
	if len(categories) == 0 {
		categories = AllCategories
	}
	if fromBlock == "" {
		fromBlock = DefaultFromBlock
	}
	return AssetTransfersRequest{
		FromBlock:        fromBlock,
		ToAddress:        toAddress,
		ExcludeZeroValue: true,
		WithMetadata:     true,
		Category:         append([]TransferCategory(nil), categories...),
		PageKey:          pageKey,
		MaxCount:         hexutil.EncodeUint64(DefaultMaxCount),
	}
}

// TransfersPage is one page of results. An empty PageKey means no more data.
type TransfersPage struct {
	Transfers []Transfer `json:"transfers"`
	PageKey   string     `json:"pageKey,omitempty"`
}

// HasMore reports whether the provider returned a continuation cursor.
func (p TransfersPage) HasMore() bool {
	return p.PageKey != ""
}
