package chains

import (
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

// Key is the internal identifier of a supported network. It is not the
// wallet-reported chain id.
type Key string

const (
	Ethereum Key = "ethereum"
	BSC      Key = "bsc"
	Polygon  Key = "polygon"
	Tron     Key = "tron"
)

type NativeCurrency struct {
	Name     string `json:"name" yaml:"Name"`
	Symbol   string `json:"symbol" yaml:"Symbol"`
	Decimals uint8  `json:"decimals" yaml:"Decimals"`
}

// Descriptor is the static metadata of one supported chain.
type Descriptor struct {
	Key            Key             `json:"key"`
	Family         provider.Family `json:"family"`
	ChainID        uint64          `json:"chainId,omitempty"`
	ChainIDHex     string          `json:"chainIdHex,omitempty"`
	Name           string          `json:"name"`
	NativeCurrency NativeCurrency  `json:"nativeCurrency"`
	RPCURLs        []string        `json:"rpcUrls"`
	ExplorerURLs   []string        `json:"explorerUrls"`
	// TxURLTemplate has one %s verb for the transaction hash.
	TxURLTemplate string `json:"txUrlTemplate"`

	StablecoinContract string `json:"stablecoinContract"`
	StablecoinSymbol   string `json:"stablecoinSymbol"`
	StablecoinDecimals uint8  `json:"stablecoinDecimals"`
}

func (d Descriptor) IsEVM() bool { return d.Family == provider.FamilyEVM }

// ReportedChainID is the chain id a wallet reports for this chain: the hex
// id for EVM chains and a sentinel for TRON.
func (d Descriptor) ReportedChainID() string {
	if d.IsEVM() {
		return d.ChainIDHex
	}
	return string(d.Key)
}

// Override replaces deploy-specific fields of a descriptor from config.
type Override struct {
	RPCURLs            []string `yaml:"RPCs" mapstructure:"RPCs" json:"rpcUrls"`
	StablecoinContract string   `yaml:"StablecoinContract" mapstructure:"StablecoinContract" json:"stablecoinContract"`
}
