// Package connection runs the wallet connect handshake and owns the
// connect/disconnect/restore lifecycle of the session.
package connection

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	chainIDTimeout        = 5 * time.Second
)

var (
	ErrProviderNotFound = errors.New("connection: no compatible wallet provider")
	ErrNoAccounts       = errors.New("connection: wallet returned no accounts")
	ErrTimeout          = errors.New("connection: wallet did not respond")
)

// Listener is told when a wallet becomes or stops being the active one.
type Listener interface {
	Attach(ctx context.Context, pctx provider.Context, w provider.Wallet)
	Detach()
}

type Request struct {
	ProviderName string           `json:"provider"`
	Family       provider.Family  `json:"family"`
	Context      provider.Context `json:"context"`
}

type Manager struct {
	resolver *provider.Resolver
	machine  *session.Machine
	registry *chains.Registry
	notifier notify.Notifier
	listener Listener
	timeout  time.Duration

	mu     sync.RWMutex
	active provider.Wallet
}

type Option func(*Manager)

func WithListener(l Listener) Option { return func(m *Manager) { m.listener = l } }

func WithNotifier(n notify.Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithTimeout(d time.Duration) Option { return func(m *Manager) { m.timeout = d } }

func NewManager(resolver *provider.Resolver, machine *session.Machine, registry *chains.Registry, opts ...Option) *Manager {
	m := &Manager{
		resolver: resolver,
		machine:  machine,
		registry: registry,
		notifier: notify.Discard,
		timeout:  DefaultConnectTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	if m.timeout <= 0 {
		m.timeout = DefaultConnectTimeout
	}
	return m
}

func (m *Manager) Session() session.WalletSession { return m.machine.Snapshot() }

// Wallet returns the wallet object backing the current session, or nil.
func (m *Manager) Wallet() provider.Wallet {
	if !m.machine.Snapshot().Connected() {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Manager) setActive(w provider.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = w
}

// Connect runs the accounts handshake. A second call while one is pending
// fails with session.ErrConnectInFlight. On failure the session is cleared
// and the returned error is a *ConnectError.
func (m *Manager) Connect(ctx context.Context, req Request) (session.WalletSession, error) {
	name := strings.ToLower(strings.TrimSpace(req.ProviderName))
	if name == "" {
		name = m.resolver.Name()
	}
	family := req.Family
	if family == "" {
		family = provider.FamilyEVM
	}

	cur, err := m.machine.Send(ctx, session.Connecting{ProviderName: name})
	switch {
	case errors.Is(err, session.ErrAlreadyConnected):
		return cur, nil
	case err != nil:
		return cur, err
	}

	s, err := m.connect(ctx, req.Context, name, family)
	if err != nil {
		f := Classify(err)
		metrics.ConnectAttempts.WithLabelValues(string(f.Kind)).Inc()
		log.Warn("wallet connect failed", "provider", name, "family", family, "kind", f.Kind, "error", err)

		if _, sendErr := m.machine.Send(context.WithoutCancel(ctx), session.Failed{Reason: f.Title}); sendErr != nil {
			log.Error("record connect failure", "error", sendErr)
		}
		m.setActive(nil)
		if f.Kind == KindUserRejected || f.Kind == KindPending {
			m.notifier.Notify(notify.Warning(f.Title, f.Message))
		} else {
			m.notifier.Notify(notify.Error(f.Title, f.Message))
		}
		return m.machine.Snapshot(), &ConnectError{Failure: f, Err: err}
	}

	metrics.ConnectAttempts.WithLabelValues("success").Inc()
	m.notifier.Notify(notify.Success("Wallet Connected", "Connected "+shortAddress(s.Address)))
	return s, nil
}

func (m *Manager) connect(ctx context.Context, pctx provider.Context, name string, family provider.Family) (session.WalletSession, error) {
	w := m.resolver.Resolve(pctx, name, family)
	if w == nil || !provider.Available(w) {
		return session.WalletSession{}, ErrProviderNotFound
	}

	addr, err := m.requestAccountWithRetry(ctx, w)
	if err != nil {
		return session.WalletSession{}, err
	}
	if err := chains.ValidateAddress(provider.FamilyOf(w), addr); err != nil {
		return session.WalletSession{}, err
	}

	chainID, chainKey := m.chainOf(ctx, w)

	m.setActive(w)
	s, err := m.machine.Send(context.WithoutCancel(ctx), session.Connected{
		Address:      addr,
		ProviderName: name,
		ChainID:      chainID,
		ChainKey:     chainKey,
	})
	if err != nil {
		return session.WalletSession{}, err
	}
	if m.listener != nil {
		m.listener.Attach(ctx, pctx, w)
	}
	log.Info("wallet connected", "provider", name, "address", addr, "chain_id", chainID)
	return s, nil
}

// requestAccountWithRetry makes the prompting accounts request. A first
// failure is often an injection race in the extension, so anything other
// than an explicit rejection, an already-open prompt or a timeout gets one
// more try. Both tries share one connect deadline.
func (m *Manager) requestAccountWithRetry(ctx context.Context, w provider.Wallet) (string, error) {
	actx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	addr, err := attempt(ctx, actx, w)
	if err == nil {
		return addr, nil
	}
	if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
		return "", err
	}
	if code, ok := provider.CodeOf(err); ok && (code == provider.CodeUserRejected || code == provider.CodeRequestPending) {
		return "", err
	}
	log.Info("accounts request failed, retrying once", "wallet", w.Label(), "error", err)
	return attempt(ctx, actx, w)
}

// attempt races the wallet against the deadline. A wallet that ignores ctx
// is abandoned, its late answer is dropped.
func attempt(ctx, actx context.Context, w provider.Wallet) (string, error) {
	type result struct {
		addr string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		addr, err := requestAccount(actx, w)
		done <- result{addr: addr, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", errors.Wrap(ErrTimeout, r.err.Error())
		}
		return r.addr, r.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", errors.Wrap(ErrTimeout, "eth_requestAccounts")
	}
}

func requestAccount(ctx context.Context, w provider.Wallet) (string, error) {
	if tw, ok := w.(provider.TronWallet); ok {
		addr, err := tw.TronAddress(ctx)
		if err != nil {
			return "", err
		}
		if addr == "" {
			return "", ErrNoAccounts
		}
		return addr, nil
	}

	var accounts []string
	if err := provider.CallInto(ctx, w, &accounts, "eth_requestAccounts"); err != nil && !errors.Is(err, provider.ErrEmptyResult) {
		return "", err
	}
	if len(accounts) == 0 {
		// authorised accounts never prompt
		if err := provider.CallInto(ctx, w, &accounts, "eth_accounts"); err != nil && !errors.Is(err, provider.ErrEmptyResult) {
			return "", err
		}
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", ErrNoAccounts
	}
	return accounts[0], nil
}

// chainOf fetches the chain id; failure leaves it unset.
func (m *Manager) chainOf(ctx context.Context, w provider.Wallet) (string, string) {
	if provider.FamilyOf(w) == provider.FamilyTron {
		return constants.TronChainID, string(chains.Tron)
	}

	cctx, cancel := context.WithTimeout(ctx, chainIDTimeout)
	defer cancel()

	var raw string
	if err := provider.CallInto(cctx, w, &raw, "eth_chainId"); err != nil {
		log.Info("chain id unavailable", "wallet", w.Label(), "error", err)
		return "", ""
	}
	id := chains.NormalizeChainID(raw)
	if d, ok := m.registry.ByChainID(id); ok {
		return id, string(d.Key)
	}
	return id, ""
}

// Disconnect clears the session and the persisted keys. It never fails and
// may be called any number of times.
func (m *Manager) Disconnect(ctx context.Context) session.WalletSession {
	if m.listener != nil {
		m.listener.Detach()
	}
	m.setActive(nil)

	wasConnected := m.machine.Snapshot().Connected()
	s, err := m.machine.Send(context.WithoutCancel(ctx), session.Disconnected{})
	if err != nil {
		log.Warn("disconnect: session machine unavailable", "error", err)
		if derr := m.machine.Store().Delete(constants.StorageKeys...); derr != nil {
			log.Warn("disconnect: clear persisted session", "error", derr)
		}
		return session.WalletSession{Status: session.StatusIdle}
	}
	if wasConnected {
		m.notifier.Notify(notify.Info("Wallet Disconnected", "Your wallet has been disconnected"))
	}
	return s
}

// Restore rebuilds the previous session without prompting. It only
// succeeds when the wallet still reports the persisted account through a
// non-prompting query.
func (m *Manager) Restore(ctx context.Context, pctx provider.Context) (session.WalletSession, bool) {
	p, ok, err := session.Load(m.machine.Store())
	if err != nil {
		log.Warn("restore: read persisted session", "error", err)
		return m.machine.Snapshot(), false
	}
	if !ok {
		return m.machine.Snapshot(), false
	}
	if p.ProviderName != m.resolver.Name() {
		log.Info("restore: persisted provider no longer supported", "provider", p.ProviderName)
		_ = m.machine.Store().Delete(constants.StorageKeys...)
		return m.machine.Snapshot(), false
	}

	family := provider.FamilyEVM
	if p.ChainID == constants.TronChainID {
		family = provider.FamilyTron
	}
	w := m.resolver.Resolve(pctx, p.ProviderName, family)
	if w == nil {
		return m.machine.Snapshot(), false
	}

	actx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if !stillAuthorised(actx, w, p.Address) {
		log.Info("restore: account no longer authorised", "address", p.Address)
		_ = m.machine.Store().Delete(constants.StorageKeys...)
		return m.machine.Snapshot(), false
	}

	chainID, chainKey := p.ChainID, ""
	if family == provider.FamilyEVM {
		if id, key := m.chainOf(ctx, w); id != "" {
			chainID, chainKey = id, key
		} else if d, ok := m.registry.ByChainID(chainID); ok {
			chainKey = string(d.Key)
		}
	} else {
		chainKey = string(chains.Tron)
	}

	m.setActive(w)
	s, err := m.machine.Send(ctx, session.Restored{
		Address:      p.Address,
		ProviderName: p.ProviderName,
		ChainID:      chainID,
		ChainKey:     chainKey,
	})
	if err != nil {
		m.setActive(nil)
		log.Warn("restore: session rejected", "error", err)
		return m.machine.Snapshot(), false
	}
	if m.listener != nil {
		m.listener.Attach(ctx, pctx, w)
	}
	log.Info("wallet session restored", "address", s.Address, "chain_id", chainID)
	return s, true
}

func stillAuthorised(ctx context.Context, w provider.Wallet, addr string) bool {
	if tw, ok := w.(provider.TronWallet); ok {
		got, err := tw.TronAddress(ctx)
		return err == nil && got == addr
	}
	var accounts []string
	if err := provider.CallInto(ctx, w, &accounts, "eth_accounts"); err != nil {
		return false
	}
	for _, a := range accounts {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

func shortAddress(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}
