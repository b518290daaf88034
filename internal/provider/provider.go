// Package provider models injected wallet objects as a closed set of
// capabilities discovered by type assertion. Nothing here reaches for a
// global: objects come from an Injected registry handed to the Resolver.
package provider

import (
	"context"
	"encoding/json"

	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
)

// Family is the chain family a wallet object can drive.
type Family string

const (
	FamilyEVM  Family = "evm"
	FamilyTron Family = "tron"
)

// Wallet is any injected wallet object. Use the capability interfaces below
// to find out what it can do.
type Wallet interface {
	Label() string
}

// Args is an EIP-1193 request.
type Args struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// Requester is the direct request(args) call convention.
type Requester interface {
	Request(ctx context.Context, args Args) (json.RawMessage, error)
}

// Nested is an object exposing a sub-provider, the wallet.ethereum.request shape.
type Nested interface {
	Inner() Requester
}

// Payload and Response are the legacy JSON-RPC envelope used by sendAsync.
type Payload struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// LegacySender is the callback-style sendAsync(payload, cb) convention.
// The callback is invoked exactly once.
type LegacySender interface {
	SendAsync(payload Payload, callback func(Response, error))
}

type Listener func(payload json.RawMessage)

type ListenerID uint64

// Emitter delivers wallet events (accountsChanged, chainChanged, disconnect).
type Emitter interface {
	On(event string, fn Listener) ListenerID
	RemoveListener(event string, id ListenerID)
}

// Branded exposes the identity markers extensions set on their injected object.
type Branded interface {
	BrandFlags() map[string]bool
	ConstructorName() string
}

// TronWallet is the account-model signer. It never exposes keys.
type TronWallet interface {
	TronAddress(ctx context.Context) (string, error)
	SignTransaction(ctx context.Context, tx *core.Transaction) (*core.Transaction, error)
}

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Events lists the wallet events the session tracks.
var Events = []string{EventAccountsChanged, EventChainChanged, EventDisconnect}

// FamilyOf reports which chain family w drives.
func FamilyOf(w Wallet) Family {
	if _, ok := w.(TronWallet); ok {
		return FamilyTron
	}
	return FamilyEVM
}

// Available reports whether w exposes at least one usable call method.
func Available(w Wallet) bool {
	if w == nil {
		return false
	}
	if _, ok := w.(TronWallet); ok {
		return true
	}
	return len(Supported(w)) > 0
}
