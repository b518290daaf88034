package constants

const (
	AppName      = "quantumpay"
	ProviderName = "quantumauth"
	SessionFile  = "session.json"
	PairingFile  = "pairing.json"

	SchemaV1      = 1
	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// Persisted session keys. Written on connect, removed on disconnect.
	StorageKeyAddress  = "walletAddress"
	StorageKeyProvider = "walletProvider"
	StorageKeyChainID  = "walletChainId"

	// TronChainID is the chain id reported for TRON sessions, which have no EVM chain id.
	TronChainID = "tron"

	ZeroAddr = "0x0000000000000000000000000000000000000000"
)

// StorageKeys lists every key owned by the session store.
var StorageKeys = []string{StorageKeyAddress, StorageKeyProvider, StorageKeyChainID}
