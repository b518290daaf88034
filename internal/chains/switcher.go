package chains

import (
	"context"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

// Switcher moves the wallet onto a supported chain.
type Switcher struct {
	registry *Registry
	notifier notify.Notifier
}

func NewSwitcher(registry *Registry, notifier notify.Notifier) *Switcher {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Switcher{registry: registry, notifier: notifier}
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// SwitchChain asks the wallet to move to key. When the wallet does not know
// the chain it is added with the full descriptor and the switch is retried.
// Failures are reported to the user and come back as false, never as an error.
func (s *Switcher) SwitchChain(ctx context.Context, w provider.Wallet, key Key) bool {
	d, ok := s.registry.Lookup(key)
	if !ok {
		s.notifier.Notify(notify.Error("Unsupported Network", "Network "+string(key)+" is not supported"))
		return false
	}
	if w == nil {
		s.notifier.Notify(notify.Error("Wallet Not Connected", "Connect your wallet before switching networks"))
		return false
	}

	if !d.IsEVM() {
		if provider.FamilyOf(w) != d.Family {
			s.notifier.Notify(notify.Error("Unsupported Network", d.Name+" is not available in this wallet"))
			return false
		}
		return true
	}
	if provider.FamilyOf(w) != provider.FamilyEVM {
		s.notifier.Notify(notify.Error("Unsupported Network", d.Name+" is not available in this wallet"))
		return false
	}

	err := s.switchTo(ctx, w, d)
	if code, ok := provider.CodeOf(err); ok && code == provider.CodeChainNotAdded {
		log.Info("chain not known to wallet, adding", "chain", d.Key, "chain_id", d.ChainIDHex)
		if addErr := s.add(ctx, w, d); addErr != nil {
			s.fail(d, addErr, "Failed to add "+d.Name)
			return false
		}
		err = s.switchTo(ctx, w, d)
	}
	if err != nil {
		s.fail(d, err, "Failed to switch to "+d.Name)
		return false
	}

	s.notifier.Notify(notify.Success("Network Switched", "Switched to "+d.Name))
	return true
}

func (s *Switcher) switchTo(ctx context.Context, w provider.Wallet, d Descriptor) error {
	_, err := provider.Call(ctx, w, "wallet_switchEthereumChain", map[string]string{"chainId": d.ChainIDHex})
	return err
}

func (s *Switcher) add(ctx context.Context, w provider.Wallet, d Descriptor) error {
	_, err := provider.Call(ctx, w, "wallet_addEthereumChain", addChainParams{
		ChainID:           d.ChainIDHex,
		ChainName:         d.Name,
		NativeCurrency:    d.NativeCurrency,
		RPCURLs:           d.RPCURLs,
		BlockExplorerURLs: d.ExplorerURLs,
	})
	return err
}

func (s *Switcher) fail(d Descriptor, err error, title string) {
	log.Warn("chain switch failed", "chain", d.Key, "error", err)
	if code, ok := provider.CodeOf(err); ok && code == provider.CodeUserRejected {
		s.notifier.Notify(notify.Warning("Network Switch Cancelled", "You declined switching to "+d.Name))
		return
	}
	s.notifier.Notify(notify.Error(title, provider.MessageOf(err)))
}
