package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountType is how the wallet account was created.
type AccountType string

const (
	AccountTypeSmart    AccountType = "smart"
	AccountTypeImported AccountType = "imported"
)

// WalletAccount is a wallet known to the app. Keys are held by the signer, never here.
type WalletAccount struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	CreatedAt   int64       `json:"createdAt"`
	LastUsed    int64       `json:"lastUsed,omitempty"`
	AccountType AccountType `json:"accountType,omitempty"`
}

// Theme is the UI colour scheme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("invalid theme %q", s)
	}
}

// ValidateAddress rejects anything that is not a 20-byte hex address.
func ValidateAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("address is required")
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("malformed address %q", address)
	}
	return nil
}

// ValidateAccount checks an account before it is added to the list.
func ValidateAccount(a WalletAccount) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name is required")
	}
	if err := ValidateAddress(a.Address); err != nil {
		return err
	}
	switch a.AccountType {
	case "", AccountTypeSmart, AccountTypeImported:
		return nil
	default:
		return fmt.Errorf("invalid account type %q", a.AccountType)
	}
}
