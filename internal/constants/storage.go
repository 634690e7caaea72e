package constants

// Storage keys used in the durable preference store. Values are JSON.
const (
	StorageKeySelectedNetwork   = "selected_network"
	StorageKeyNetworkType       = "network_type"
	StorageKeyPreferredNetworks = "preferred_networks"
	StorageKeyWalletAccounts    = "wallet_accounts"
	StorageKeyActiveAccountID   = "active_account_id"
	StorageKeyCustomNetworks    = "custom_networks"
	StorageKeyTheme             = "theme"
	StorageKeyGasSponsorship    = "gas_sponsorship_enabled"
	StorageKeyWalletLocked      = "wallet_locked"
)

// StorageKeys lists every key the synchronizer owns.
var StorageKeys = []string{
	StorageKeySelectedNetwork,
	StorageKeyNetworkType,
	StorageKeyPreferredNetworks,
	StorageKeyWalletAccounts,
	StorageKeyActiveAccountID,
	StorageKeyCustomNetworks,
	StorageKeyTheme,
	StorageKeyGasSponsorship,
	StorageKeyWalletLocked,
}

// Storage drivers
const (
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)
