// Package providertest has in-memory wallet objects for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"

	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

type Handler func(params []any) (any, error)

// Wallet is a scriptable EIP-1193 object with the direct request convention.
type Wallet struct {
	Name  string
	Flags map[string]bool
	Ctor  string

	mu        sync.Mutex
	handlers  map[string]Handler
	calls     []provider.Args
	listeners map[string]map[provider.ListenerID]provider.Listener
	nextID    provider.ListenerID
}

func New(name string) *Wallet {
	return &Wallet{
		Name:      name,
		Flags:     map[string]bool{provider.BrandFlag: true},
		handlers:  map[string]Handler{},
		listeners: map[string]map[provider.ListenerID]provider.Listener{},
	}
}

// Handle scripts the reply for method.
func (w *Wallet) Handle(method string, fn Handler) *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[method] = fn
	return w
}

// Reply scripts a fixed result for method.
func (w *Wallet) Reply(method string, result any) *Wallet {
	return w.Handle(method, func([]any) (any, error) { return result, nil })
}

// Fail scripts a wallet error for method.
func (w *Wallet) Fail(method string, code int, msg string) *Wallet {
	return w.Handle(method, func([]any) (any, error) {
		return nil, &provider.RPCError{Code: code, Message: msg}
	})
}

func (w *Wallet) Label() string { return w.Name }

func (w *Wallet) BrandFlags() map[string]bool { return w.Flags }

func (w *Wallet) ConstructorName() string { return w.Ctor }

func (w *Wallet) Request(ctx context.Context, args provider.Args) (json.RawMessage, error) {
	w.mu.Lock()
	w.calls = append(w.calls, args)
	fn, ok := w.handlers[args.Method]
	w.mu.Unlock()

	if !ok {
		return nil, &provider.RPCError{Code: provider.CodeUnsupported, Message: fmt.Sprintf("%s not scripted", args.Method)}
	}
	out, err := fn(args.Params)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return json.Marshal(out)
}

// Calls returns the recorded requests for method, or all requests when method is empty.
func (w *Wallet) Calls(method string) []provider.Args {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []provider.Args
	for _, c := range w.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (w *Wallet) On(event string, fn provider.Listener) provider.ListenerID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	if w.listeners[event] == nil {
		w.listeners[event] = map[provider.ListenerID]provider.Listener{}
	}
	w.listeners[event][w.nextID] = fn
	return w.nextID
}

func (w *Wallet) RemoveListener(event string, id provider.ListenerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.listeners[event], id)
}

func (w *Wallet) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.listeners {
		n += len(m)
	}
	return n
}

// Emit delivers payload to every listener of event synchronously.
func (w *Wallet) Emit(event string, payload any) {
	b, _ := json.Marshal(payload)

	w.mu.Lock()
	fns := make([]provider.Listener, 0, len(w.listeners[event]))
	for _, fn := range w.listeners[event] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(b)
	}
}

// Legacy only speaks sendAsync.
type Legacy struct {
	Name    string
	Results map[string]any
	Errors  map[string]*provider.RPCError
}

func (l *Legacy) Label() string { return l.Name }

func (l *Legacy) SendAsync(p provider.Payload, cb func(provider.Response, error)) {
	go func() {
		if e, ok := l.Errors[p.Method]; ok {
			cb(provider.Response{ID: p.ID, Error: e}, nil)
			return
		}
		b, _ := json.Marshal(l.Results[p.Method])
		cb(provider.Response{ID: p.ID, Result: b}, nil)
	}()
}

// Outer exposes an inner requester, like wallet.ethereum.
type Outer struct {
	Name string
	Sub  provider.Requester
}

func (o *Outer) Label() string { return o.Name }

func (o *Outer) Inner() provider.Requester { return o.Sub }

// Tron is an account-model signer.
type Tron struct {
	Address   string
	SignErr   error
	AddrErr   error
	Flags     map[string]bool
	mu        sync.Mutex
	Signed    []*core.Transaction
	Signature []byte
}

func NewTron(address string) *Tron {
	return &Tron{Address: address, Flags: map[string]bool{provider.BrandFlag: true}, Signature: []byte{0x01, 0x02}}
}

func (t *Tron) Label() string { return "tron:" + t.Address }

func (t *Tron) BrandFlags() map[string]bool { return t.Flags }

func (t *Tron) ConstructorName() string { return "" }

func (t *Tron) TronAddress(context.Context) (string, error) {
	if t.AddrErr != nil {
		return "", t.AddrErr
	}
	return t.Address, nil
}

func (t *Tron) SignTransaction(_ context.Context, tx *core.Transaction) (*core.Transaction, error) {
	if t.SignErr != nil {
		return nil, t.SignErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tx.Signature = append(tx.Signature, t.Signature)
	t.Signed = append(t.Signed, tx)
	return tx, nil
}
