package chains

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"

	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

const UnknownNetwork = "Unknown Network"

var (
	ErrUnknownChain   = errors.New("chains: unknown chain")
	ErrInvalidAddress = errors.New("chains: invalid address")
)

// Registry is the immutable table of supported chains.
type Registry struct {
	byKey     map[Key]Descriptor
	byChainID map[string]Key
	order     []Key
}

func NewRegistry(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		byKey:     make(map[Key]Descriptor, len(descs)),
		byChainID: make(map[string]Key, len(descs)),
	}
	contracts := map[string]Key{}

	for _, d := range descs {
		d.Key = Key(strings.ToLower(strings.TrimSpace(string(d.Key))))
		if d.Key == "" {
			return nil, errors.New("chains: descriptor without key")
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, errors.Newf("chains: duplicate key %s", d.Key)
		}
		if d.StablecoinDecimals == 0 {
			return nil, errors.Newf("chains: %s has no stablecoin decimals", d.Key)
		}
		if err := ValidateAddress(d.Family, d.StablecoinContract); err != nil {
			return nil, errors.Wrapf(err, "chains: %s stablecoin contract", d.Key)
		}
		if !strings.Contains(d.TxURLTemplate, "%s") {
			return nil, errors.Newf("chains: %s tx url template needs a %%s verb", d.Key)
		}

		contract := strings.ToLower(d.StablecoinContract)
		if other, dup := contracts[contract]; dup {
			return nil, errors.Newf("chains: %s and %s share stablecoin contract %s", other, d.Key, d.StablecoinContract)
		}
		contracts[contract] = d.Key

		if d.IsEVM() {
			if d.ChainID == 0 {
				return nil, errors.Newf("chains: %s has no chain id", d.Key)
			}
			d.ChainIDHex = "0x" + strconv.FormatUint(d.ChainID, 16)
		}
		id := d.ReportedChainID()
		if _, dup := r.byChainID[id]; dup {
			return nil, errors.Newf("chains: duplicate chain id %s", id)
		}

		r.byKey[d.Key] = d
		r.byChainID[id] = d.Key
		r.order = append(r.order, d.Key)
	}
	return r, nil
}

// Default returns the built-in mainnet registry.
func Default() *Registry {
	r, err := NewRegistry(DefaultDescriptors())
	if err != nil {
		panic(err)
	}
	return r
}

// WithOverrides returns a copy with RPC URLs and contract addresses replaced.
func (r *Registry) WithOverrides(overrides map[string]Override) (*Registry, error) {
	descs := r.All()
	for i, d := range descs {
		o, ok := overrides[string(d.Key)]
		if !ok {
			continue
		}
		if rpcs := cleanURLs(o.RPCURLs); len(rpcs) > 0 {
			d.RPCURLs = rpcs
		}
		if c := strings.TrimSpace(o.StablecoinContract); c != "" {
			d.StablecoinContract = c
		}
		descs[i] = d
	}
	for k := range overrides {
		if _, ok := r.byKey[Key(strings.ToLower(k))]; !ok {
			return nil, errors.Wrapf(ErrUnknownChain, "override for %q", k)
		}
	}
	return NewRegistry(descs)
}

func (r *Registry) Lookup(key Key) (Descriptor, bool) {
	d, ok := r.byKey[Key(strings.ToLower(string(key)))]
	return d, ok
}

func (r *Registry) Get(key Key) (Descriptor, error) {
	d, ok := r.Lookup(key)
	if !ok {
		return Descriptor{}, errors.Wrapf(ErrUnknownChain, "%q", key)
	}
	return d, nil
}

// All returns every descriptor in declaration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, k := range r.order {
		d := r.byKey[k]
		d.RPCURLs = append([]string(nil), d.RPCURLs...)
		d.ExplorerURLs = append([]string(nil), d.ExplorerURLs...)
		out = append(out, d)
	}
	return out
}

// ByChainID finds a chain by wallet-reported id ("0x38", "56", "tron").
func (r *Registry) ByChainID(chainID string) (Descriptor, bool) {
	k, ok := r.byChainID[NormalizeChainID(chainID)]
	if !ok {
		return Descriptor{}, false
	}
	return r.byKey[k], true
}

// NetworkName is the display name for a wallet-reported chain id.
func (r *Registry) NetworkName(chainID string) string {
	if d, ok := r.ByChainID(chainID); ok {
		return d.Name
	}
	return UnknownNetwork
}

func (r *Registry) ForFamily(f provider.Family) []Descriptor {
	var out []Descriptor
	for _, d := range r.All() {
		if d.Family == f {
			out = append(out, d)
		}
	}
	return out
}

// ForWallet filters chains by what the wallet object can drive: a TRON
// signer only ever offers TRON, EVM objects offer the remaining chains.
func (r *Registry) ForWallet(w provider.Wallet) []Descriptor {
	if w == nil {
		return nil
	}
	return r.ForFamily(provider.FamilyOf(w))
}

func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case Ethereum, BSC, Polygon, Tron:
		return k, nil
	}
	return "", errors.Wrapf(ErrUnknownChain, "%q", s)
}

// NormalizeChainID canonicalises a reported chain id to lower-case 0x hex.
// Decimal ids are converted; the TRON sentinel passes through.
func NormalizeChainID(s string) string {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), `"`))
	if s == "" || s == constants.TronChainID {
		return s
	}
	if strings.HasPrefix(s, "0x") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return s
		}
		return "0x" + n.Text(16)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return s
	}
	return "0x" + n.Text(16)
}

// ValidateAddress checks addr is a well-formed account address for family.
// The EVM zero address is rejected.
func ValidateAddress(family provider.Family, addr string) error {
	addr = strings.TrimSpace(addr)
	switch family {
	case provider.FamilyTron:
		a, err := address.Base58ToAddress(addr)
		if err != nil || len(a.Bytes()) != 21 || a.Bytes()[0] != address.TronBytePrefix {
			return errors.Wrapf(ErrInvalidAddress, "tron %q", addr)
		}
		return nil
	default:
		if !common.IsHexAddress(addr) {
			return errors.Wrapf(ErrInvalidAddress, "evm %q", addr)
		}
		if strings.EqualFold(common.HexToAddress(addr).Hex(), constants.ZeroAddr) {
			return errors.Wrapf(ErrInvalidAddress, "evm zero address")
		}
		return nil
	}
}

// AccountBytes returns the 20 byte account used in call data for either family.
func AccountBytes(family provider.Family, addr string) ([]byte, error) {
	if err := ValidateAddress(family, addr); err != nil {
		return nil, err
	}
	if family == provider.FamilyTron {
		a, _ := address.Base58ToAddress(strings.TrimSpace(addr))
		return a.Bytes()[1:], nil
	}
	return common.HexToAddress(addr).Bytes(), nil
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" || seen[strings.ToLower(u)] {
			continue
		}
		seen[strings.ToLower(u)] = true
		out = append(out, u)
	}
	return out
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s)", d.Key, d.ReportedChainID())
}
