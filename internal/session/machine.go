package session

import (
	"context"
	"sync/atomic"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
)

type request struct {
	cmd   Command
	reply chan result
}

type result struct {
	s   WalletSession
	err error
}

// Observer is told about every applied transition, from the writer goroutine.
type Observer func(prev, next WalletSession)

// Machine serialises every session mutation through one goroutine (Run).
// Snapshot is lock-free and may be called from anywhere.
type Machine struct {
	cmds      chan request
	done      chan struct{}
	state     atomic.Pointer[WalletSession]
	store     Store
	observers []Observer
}

func NewMachine(store Store, observers ...Observer) *Machine {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Machine{
		cmds:      make(chan request),
		done:      make(chan struct{}),
		store:     store,
		observers: observers,
	}
	s := idle()
	m.state.Store(&s)
	return m
}

// Run applies commands until ctx is cancelled.
func (m *Machine) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.cmds:
			req.reply <- m.apply(req.cmd)
		}
	}
}

func (m *Machine) apply(cmd Command) result {
	prev := *m.state.Load()
	next, err := transition(prev, cmd)
	if err != nil {
		return result{s: prev, err: err}
	}
	m.state.Store(&next)
	m.persist(prev, next)
	for _, o := range m.observers {
		o(prev, next)
	}
	return result{s: next}
}

// persist mirrors the connected fields to the store. Store failures are
// logged only: in-memory state stays authoritative.
func (m *Machine) persist(prev, next WalletSession) {
	if !next.Connected() {
		if err := m.store.Delete(constants.StorageKeys...); err != nil {
			log.Warn("clear persisted session", "from", prev.Status, "error", err)
		}
		return
	}

	vals := map[string]string{
		constants.StorageKeyAddress:  next.Address,
		constants.StorageKeyProvider: next.ProviderName,
	}
	for k, v := range vals {
		if err := m.store.Set(k, v); err != nil {
			log.Warn("persist session", "key", k, "error", err)
		}
	}
	if next.ChainID != nil {
		if err := m.store.Set(constants.StorageKeyChainID, *next.ChainID); err != nil {
			log.Warn("persist session", "key", constants.StorageKeyChainID, "error", err)
		}
	} else if err := m.store.Delete(constants.StorageKeyChainID); err != nil {
		log.Warn("clear persisted chain id", "error", err)
	}
}

// Send applies cmd and returns the resulting snapshot.
func (m *Machine) Send(ctx context.Context, cmd Command) (WalletSession, error) {
	req := request{cmd: cmd, reply: make(chan result, 1)}
	select {
	case m.cmds <- req:
	case <-m.done:
		return m.Snapshot(), ErrStopped
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
	// once accepted the command is applied; wait for it regardless of ctx
	r := <-req.reply
	return r.s, r.err
}

func (m *Machine) Snapshot() WalletSession {
	return *m.state.Load()
}

func (m *Machine) Store() Store { return m.store }
