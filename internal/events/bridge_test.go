package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider/providertest"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

type fixture struct {
	bridge  *Bridge
	machine *session.Machine
	store   *session.MemoryStore
	feed    *notify.Feed
	wallet  *providertest.Wallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := session.NewMemoryStore()
	m := session.NewMachine(store)
	go m.Run(ctx)

	_, err := m.Send(ctx, session.Connecting{ProviderName: "quantumauth"})
	require.NoError(t, err)
	_, err = m.Send(ctx, session.Connected{Address: addrA, ProviderName: "quantumauth", ChainID: "0x89", ChainKey: "polygon"})
	require.NoError(t, err)

	feed := notify.NewFeed(10)
	resolver := provider.NewResolver(provider.NewInjected(provider.Globals{}), "quantumauth", []string{"/"})
	return &fixture{
		bridge:  NewBridge(m, chains.Default(), resolver, feed),
		machine: m,
		store:   store,
		feed:    feed,
		wallet:  providertest.New("w"),
	}
}

func TestAttachRegistersOncePerEvent(t *testing.T) {
	f := newFixture(t)
	pctx := provider.Context{Path: "/dashboard"}

	f.bridge.Attach(context.Background(), pctx, f.wallet)
	require.Equal(t, 3, f.wallet.ListenerCount())

	// reattach replaces, never stacks
	f.bridge.Attach(context.Background(), pctx, f.wallet)
	require.Equal(t, 3, f.wallet.ListenerCount())
	require.Equal(t, 3, f.bridge.Listeners())

	f.bridge.Detach()
	require.Zero(t, f.wallet.ListenerCount())
	require.Zero(t, f.bridge.Listeners())
}

func TestGuardedContextRegistersNothing(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/", "/?ref=abc", "/#top", ""} {
		f.bridge.Attach(context.Background(), provider.Context{Path: path}, f.wallet)
		require.Zero(t, f.wallet.ListenerCount(), path)
	}
}

func TestAccountsChanged(t *testing.T) {
	f := newFixture(t)
	f.bridge.Attach(context.Background(), provider.Context{Path: "/invest"}, f.wallet)

	f.wallet.Emit(provider.EventAccountsChanged, []string{addrA})
	_, ok := f.feed.Last()
	require.False(t, ok, "same address is silent")

	f.wallet.Emit(provider.EventAccountsChanged, []string{addrB})
	s := f.machine.Snapshot()
	require.Equal(t, addrB, s.Address)
	require.Equal(t, session.StatusConnected, s.Status)
	last, _ := f.feed.Last()
	require.Equal(t, "Account Changed", last.Title)

	f.wallet.Emit(provider.EventAccountsChanged, []string{})
	s = f.machine.Snapshot()
	require.Equal(t, session.StatusIdle, s.Status)
	require.Empty(t, s.Address)
	require.Nil(t, s.ChainID)
	require.Zero(t, f.wallet.ListenerCount())
}

func TestChainChanged(t *testing.T) {
	f := newFixture(t)
	f.bridge.Attach(context.Background(), provider.Context{Path: "/invest"}, f.wallet)

	f.wallet.Emit(provider.EventChainChanged, "0x38")
	s := f.machine.Snapshot()
	require.Equal(t, "0x38", s.ChainIDOrEmpty())
	require.Equal(t, "bsc", s.ChainKey)
	last, _ := f.feed.Last()
	require.Equal(t, "Switched to BNB Smart Chain", last.Message)

	f.wallet.Emit(provider.EventChainChanged, 8453)
	s = f.machine.Snapshot()
	require.Equal(t, "0x2105", s.ChainIDOrEmpty())
	require.Empty(t, s.ChainKey)
	last, _ = f.feed.Last()
	require.Equal(t, "Switched to "+chains.UnknownNetwork, last.Message)
}

func TestDisconnectEvent(t *testing.T) {
	f := newFixture(t)
	f.bridge.Attach(context.Background(), provider.Context{Path: "/invest"}, f.wallet)

	f.wallet.Emit(provider.EventDisconnect, map[string]any{"code": 4900})
	require.Equal(t, session.StatusIdle, f.machine.Snapshot().Status)
	require.Zero(t, f.wallet.ListenerCount())

	p, ok, err := session.Load(f.store)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, p.Address)
}
