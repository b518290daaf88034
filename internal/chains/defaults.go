package chains

import (
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

// DefaultDescriptors are the mainnet USDT deployments the payment flow accepts.
// BSC's USDT is an 18 decimal token while the others use 6.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Key:                Ethereum,
			Family:             provider.FamilyEVM,
			ChainID:            1,
			ChainIDHex:         "0x1",
			Name:               "Ethereum Mainnet",
			NativeCurrency:     NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:            []string{"https://ethereum-rpc.publicnode.com"},
			ExplorerURLs:       []string{"https://etherscan.io"},
			TxURLTemplate:      "https://etherscan.io/tx/%s",
			StablecoinContract: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			StablecoinSymbol:   "USDT",
			StablecoinDecimals: 6,
		},
		{
			Key:                BSC,
			Family:             provider.FamilyEVM,
			ChainID:            56,
			ChainIDHex:         "0x38",
			Name:               "BNB Smart Chain",
			NativeCurrency:     NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			RPCURLs:            []string{"https://bsc-dataseed.binance.org"},
			ExplorerURLs:       []string{"https://bscscan.com"},
			TxURLTemplate:      "https://bscscan.com/tx/%s",
			StablecoinContract: "0x55d398326f99059fF775485246999027B3197955",
			StablecoinSymbol:   "USDT",
			StablecoinDecimals: 18,
		},
		{
			Key:                Polygon,
			Family:             provider.FamilyEVM,
			ChainID:            137,
			ChainIDHex:         "0x89",
			Name:               "Polygon Mainnet",
			NativeCurrency:     NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
			RPCURLs:            []string{"https://polygon-rpc.com"},
			ExplorerURLs:       []string{"https://polygonscan.com"},
			TxURLTemplate:      "https://polygonscan.com/tx/%s",
			StablecoinContract: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
			StablecoinSymbol:   "USDT",
			StablecoinDecimals: 6,
		},
		{
			Key:                Tron,
			Family:             provider.FamilyTron,
			Name:               "TRON Mainnet",
			NativeCurrency:     NativeCurrency{Name: "TRON", Symbol: "TRX", Decimals: 6},
			RPCURLs:            []string{"grpc.trongrid.io:50051"},
			ExplorerURLs:       []string{"https://tronscan.org"},
			TxURLTemplate:      "https://tronscan.org/#/transaction/%s",
			StablecoinContract: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
			StablecoinSymbol:   "USDT",
			StablecoinDecimals: 6,
		},
	}
}
