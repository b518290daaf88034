// Package events keeps the session in step with what the wallet reports.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

type subscription struct {
	event string
	id    provider.ListenerID
}

// Bridge subscribes to one wallet's events at a time and turns them into
// session commands.
type Bridge struct {
	machine  *session.Machine
	registry *chains.Registry
	resolver *provider.Resolver
	notifier notify.Notifier

	mu      sync.Mutex
	emitter provider.Emitter
	subs    []subscription
}

func NewBridge(machine *session.Machine, registry *chains.Registry, resolver *provider.Resolver, notifier notify.Notifier) *Bridge {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Bridge{machine: machine, registry: registry, resolver: resolver, notifier: notifier}
}

// Attach registers one listener per tracked event on w. Any previous
// subscription is dropped first. Guarded contexts register nothing.
func (b *Bridge) Attach(_ context.Context, pctx provider.Context, w provider.Wallet) {
	if b.resolver != nil && b.resolver.Guarded(pctx) {
		return
	}
	b.Detach()

	em, ok := w.(provider.Emitter)
	if !ok {
		log.Info("wallet does not emit events", "wallet", w.Label())
		return
	}

	handlers := map[string]provider.Listener{
		provider.EventAccountsChanged: b.onAccountsChanged,
		provider.EventChainChanged:    b.onChainChanged,
		provider.EventDisconnect:      b.onDisconnect,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitter = em
	for _, ev := range provider.Events {
		b.subs = append(b.subs, subscription{event: ev, id: em.On(ev, handlers[ev])})
	}
}

// Detach removes every listener this bridge registered.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.emitter == nil {
		return
	}
	for _, s := range b.subs {
		b.emitter.RemoveListener(s.event, s.id)
	}
	b.subs = nil
	b.emitter = nil
}

// Listeners is the number of registered listeners.
func (b *Bridge) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bridge) onAccountsChanged(payload json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		log.Warn("bad accountsChanged payload", "payload", string(payload), "error", err)
		return
	}
	if len(accounts) == 0 {
		b.disconnect("Your wallet has no connected accounts")
		return
	}

	cur := b.machine.Snapshot()
	if strings.EqualFold(cur.Address, accounts[0]) {
		return
	}
	if _, err := b.machine.Send(context.Background(), session.AccountChanged{Address: accounts[0]}); err != nil {
		log.Info("ignoring account change", "error", err)
		return
	}
	b.notifier.Notify(notify.Info("Account Changed", "Now using "+accounts[0]))
}

func (b *Bridge) onChainChanged(payload json.RawMessage) {
	id := chains.NormalizeChainID(decodeChainID(payload))
	if id == "" {
		log.Warn("bad chainChanged payload", "payload", string(payload))
		return
	}

	key := ""
	if d, ok := b.registry.ByChainID(id); ok {
		key = string(d.Key)
	}
	if _, err := b.machine.Send(context.Background(), session.ChainChanged{ChainID: id, ChainKey: key}); err != nil {
		log.Info("ignoring chain change", "error", err)
		return
	}
	b.notifier.Notify(notify.Info("Network Changed", "Switched to "+b.registry.NetworkName(id)))
}

func (b *Bridge) onDisconnect(json.RawMessage) {
	b.disconnect("The wallet ended the session")
}

func (b *Bridge) disconnect(reason string) {
	b.Detach()
	prev := b.machine.Snapshot()
	if _, err := b.machine.Send(context.Background(), session.Disconnected{}); err != nil {
		log.Warn("disconnect from wallet event", "error", err)
		return
	}
	if prev.Connected() {
		b.notifier.Notify(notify.Info("Wallet Disconnected", reason))
	}
}

// decodeChainID accepts a JSON string or number.
func decodeChainID(payload json.RawMessage) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	var n uint64
	if err := json.Unmarshal(payload, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return ""
}
