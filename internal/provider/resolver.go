package provider

import (
	"strings"
	"sync"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

// BrandFlag is the identity flag the supported wallet sets on its injected object.
const BrandFlag = "isQuantumAuth"

// RivalFlags are flags set by other wallet brands. A candidate carrying any
// of them is rejected even when it also exposes request.
var RivalFlags = []string{
	"isMetaMask",
	"isTrust",
	"isTrustWallet",
	"isCoinbaseWallet",
	"isBraveWallet",
	"isTokenPocket",
	"isOkxWallet",
	"isBitKeep",
	"isPhantom",
	"isRabby",
	"isTronLink",
}

// RivalConstructors are constructor names of other brands' injected objects.
var RivalConstructors = []string{
	"MetaMaskInpageProvider",
	"TrustWeb3Provider",
	"CoinbaseWalletProvider",
	"BraveEthereumProvider",
	"TokenPocketProvider",
	"OKXWalletProvider",
	"BitKeepProvider",
	"PhantomEthereumProvider",
	"RabbyProvider",
}

// Context describes where a wallet interaction was requested from.
type Context struct {
	Path string `json:"path"`
}

// Globals are the injected slots a page can see.
type Globals struct {
	Dedicated Wallet   // brand-specific slot
	Providers []Wallet // multi-injection list on the generic slot
	Ethereum  Wallet   // generic EIP-1193 slot
	Tron      Wallet   // account-model slot
}

type Source interface {
	Globals() Globals
}

// Injected holds the wallet objects visible to the resolver.
type Injected struct {
	mu sync.RWMutex
	g  Globals
}

func NewInjected(g Globals) *Injected {
	return &Injected{g: g}
}

func (i *Injected) Set(g Globals) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.g = g
}

func (i *Injected) Globals() Globals {
	i.mu.RLock()
	defer i.mu.RUnlock()
	g := i.g
	g.Providers = append([]Wallet(nil), i.g.Providers...)
	return g
}

type Resolver struct {
	source  Source
	name    string
	guarded map[string]struct{}
}

// NewResolver returns a resolver for the single supported provider name.
// guardedPaths are page paths where wallet interaction is never allowed.
func NewResolver(source Source, name string, guardedPaths []string) *Resolver {
	r := &Resolver{
		source:  source,
		name:    strings.ToLower(strings.TrimSpace(name)),
		guarded: make(map[string]struct{}, len(guardedPaths)),
	}
	for _, p := range guardedPaths {
		r.guarded[normalizePath(p)] = struct{}{}
	}
	return r
}

func (r *Resolver) Name() string { return r.name }

// Guarded reports whether pctx forbids any wallet interaction.
func (r *Resolver) Guarded(pctx Context) bool {
	_, ok := r.guarded[normalizePath(pctx.Path)]
	return ok
}

// Resolve returns the wallet object to drive for family, or nil.
// It has no side effects and never prompts.
func (r *Resolver) Resolve(pctx Context, name string, family Family) Wallet {
	if r.Guarded(pctx) {
		return nil
	}
	if strings.ToLower(strings.TrimSpace(name)) != r.name {
		return nil
	}

	g := r.source.Globals()

	var cands []Wallet
	switch family {
	case FamilyTron:
		cands = []Wallet{g.Tron, g.Dedicated}
	default:
		cands = append(cands, g.Dedicated)
		cands = append(cands, g.Providers...)
		cands = append(cands, g.Ethereum)
	}

	for _, w := range cands {
		if w == nil || !Accepts(w) {
			continue
		}
		if family == FamilyTron {
			if _, ok := w.(TronWallet); !ok {
				continue
			}
		} else if len(Supported(w)) == 0 {
			continue
		}
		return w
	}

	log.Info("no compatible wallet provider", "provider", name, "family", family)
	return nil
}

// Accepts applies the brand rules to one candidate: any rival marker
// disqualifies it, the brand flag qualifies it, and an unmarked object is
// assumed compatible when it has a call method.
func Accepts(w Wallet) bool {
	if w == nil {
		return false
	}
	if b, ok := w.(Branded); ok {
		flags := b.BrandFlags()
		for _, f := range RivalFlags {
			if flags[f] {
				return false
			}
		}
		ctor := b.ConstructorName()
		for _, c := range RivalConstructors {
			if strings.EqualFold(ctor, c) {
				return false
			}
		}
		if flags[BrandFlag] {
			return true
		}
	}
	return Available(w)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		// no page means the landing page
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return strings.ToLower(p)
}
