// Package balance reads the stablecoin balance of the connected account.
package balance

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/erc20"
	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
)

var (
	ErrNoWallet = errors.New("balance: no wallet")
	ErrNoNode   = errors.New("balance: tron node not configured")
)

// Snapshot is one balance read. A non-empty Error means Raw is not
// authoritative: a zero here does not prove an empty wallet.
type Snapshot struct {
	ChainKey  chains.Key `json:"chainKey"`
	Address   string     `json:"address"`
	Raw       string     `json:"raw"`
	Decimals  uint8      `json:"decimals"`
	Symbol    string     `json:"symbol"`
	Formatted string     `json:"formatted"`
	Error     string     `json:"error,omitempty"`
}

func (s Snapshot) Reliable() bool { return s.Error == "" }

type Reader struct {
	registry *chains.Registry
	node     tron.Node
}

// NewReader returns a reader; node may be nil when TRON is not configured.
func NewReader(registry *chains.Registry, node tron.Node) *Reader {
	return &Reader{registry: registry, node: node}
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// GetBalance never fails: any problem is reported in Snapshot.Error with a
// zero balance.
func (r *Reader) GetBalance(ctx context.Context, w provider.Wallet, address string, key chains.Key) Snapshot {
	d, err := r.registry.Get(key)
	if err != nil {
		metrics.BalanceReads.WithLabelValues(string(key), "failure").Inc()
		return failed(Snapshot{ChainKey: key, Address: address}, err)
	}
	snap := Snapshot{ChainKey: d.Key, Address: address, Decimals: d.StablecoinDecimals, Symbol: d.StablecoinSymbol}

	var raw *big.Int
	if d.IsEVM() {
		raw, err = r.evmBalance(ctx, w, address, d)
	} else {
		raw, err = r.tronBalance(ctx, address, d)
	}
	if err != nil {
		log.Warn("balance read failed", "chain", d.Key, "address", address, "error", err)
		metrics.BalanceReads.WithLabelValues(string(d.Key), "failure").Inc()
		return failed(snap, err)
	}

	metrics.BalanceReads.WithLabelValues(string(d.Key), "success").Inc()
	snap.Raw = raw.String()
	snap.Formatted = erc20.FormatUnits(raw, d.StablecoinDecimals)
	return snap
}

func (r *Reader) evmBalance(ctx context.Context, w provider.Wallet, address string, d chains.Descriptor) (*big.Int, error) {
	if w == nil {
		return nil, ErrNoWallet
	}
	holder, err := chains.AccountBytes(d.Family, address)
	if err != nil {
		return nil, err
	}
	data, err := erc20.EncodeBalanceOf(holder)
	if err != nil {
		return nil, err
	}

	var result string
	if err := provider.CallInto(ctx, w, &result, "eth_call", callParams{To: d.StablecoinContract, Data: data}, "latest"); err != nil {
		if errors.Is(err, provider.ErrEmptyResult) {
			return nil, erc20.ErrEmptyResult
		}
		return nil, err
	}
	return erc20.DecodeUint256(result)
}

func (r *Reader) tronBalance(ctx context.Context, address string, d chains.Descriptor) (*big.Int, error) {
	if r.node == nil {
		return nil, ErrNoNode
	}
	if err := chains.ValidateAddress(d.Family, address); err != nil {
		return nil, err
	}
	bal, err := r.node.TRC20Balance(ctx, address, d.StablecoinContract)
	if err != nil {
		return nil, err
	}
	if bal == nil || bal.Sign() < 0 {
		return nil, erc20.ErrInvalidResult
	}
	return bal, nil
}

func failed(s Snapshot, err error) Snapshot {
	s.Raw = "0"
	s.Formatted = erc20.FormatUnits(big.NewInt(0), 0)
	s.Error = provider.MessageOf(err)
	return s
}
