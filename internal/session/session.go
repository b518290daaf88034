// Package session owns the wallet session. A single goroutine applies
// commands to it; everyone else reads immutable snapshots.
package session

import (
	"github.com/cockroachdb/errors"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
)

// Statuses lists every status in transition order.
var Statuses = []Status{StatusIdle, StatusConnecting, StatusConnected, StatusError}

var (
	ErrConnectInFlight   = errors.New("session: connect already in progress")
	ErrAlreadyConnected  = errors.New("session: already connected")
	ErrNotConnected      = errors.New("session: not connected")
	ErrInvalidTransition = errors.New("session: invalid transition")
	ErrStopped           = errors.New("session: machine stopped")
)

// WalletSession is the connected external account. Address is non-empty
// exactly when Status is connected.
type WalletSession struct {
	Address      string  `json:"address"`
	ProviderName string  `json:"providerName,omitempty"`
	ChainKey     string  `json:"chainKey,omitempty"`
	ChainID      *string `json:"chainId"`
	Status       Status  `json:"status"`
	Error        string  `json:"error,omitempty"`
}

func (s WalletSession) Connected() bool {
	return s.Status == StatusConnected && s.Address != ""
}

// ChainIDOrEmpty dereferences ChainID.
func (s WalletSession) ChainIDOrEmpty() string {
	if s.ChainID == nil {
		return ""
	}
	return *s.ChainID
}

func idle() WalletSession { return WalletSession{Status: StatusIdle} }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Command is a state change request. The set is closed.
type Command interface {
	command()
}

type Connecting struct {
	ProviderName string
}

type Connected struct {
	Address      string
	ProviderName string
	ChainID      string
	ChainKey     string
}

type Failed struct {
	Reason string
}

type AccountChanged struct {
	Address string
}

type ChainChanged struct {
	ChainID  string
	ChainKey string
}

type Disconnected struct{}

// Restored rebuilds a connected session from persisted keys without a prompt.
type Restored struct {
	Address      string
	ProviderName string
	ChainID      string
	ChainKey     string
}

func (Connecting) command()     {}
func (Connected) command()      {}
func (Failed) command()         {}
func (AccountChanged) command() {}
func (ChainChanged) command()   {}
func (Disconnected) command()   {}
func (Restored) command()       {}

// transition is the whole state table.
func transition(cur WalletSession, cmd Command) (WalletSession, error) {
	switch c := cmd.(type) {
	case Connecting:
		switch cur.Status {
		case StatusConnecting:
			return cur, ErrConnectInFlight
		case StatusConnected:
			return cur, ErrAlreadyConnected
		}
		return WalletSession{Status: StatusConnecting, ProviderName: c.ProviderName}, nil

	case Connected:
		if cur.Status != StatusConnecting {
			return cur, errors.Wrapf(ErrInvalidTransition, "connected from %s", cur.Status)
		}
		if c.Address == "" {
			return cur, errors.Wrap(ErrInvalidTransition, "connected without address")
		}
		return WalletSession{
			Address:      c.Address,
			ProviderName: c.ProviderName,
			ChainKey:     c.ChainKey,
			ChainID:      strPtr(c.ChainID),
			Status:       StatusConnected,
		}, nil

	case Failed:
		if cur.Status != StatusConnecting {
			return cur, errors.Wrapf(ErrInvalidTransition, "failed from %s", cur.Status)
		}
		return WalletSession{Status: StatusError, Error: c.Reason}, nil

	case AccountChanged:
		if cur.Status != StatusConnected {
			return cur, ErrNotConnected
		}
		if c.Address == "" {
			return idle(), nil
		}
		next := cur
		next.Address = c.Address
		return next, nil

	case ChainChanged:
		if cur.Status != StatusConnected {
			return cur, ErrNotConnected
		}
		next := cur
		next.ChainID = strPtr(c.ChainID)
		next.ChainKey = c.ChainKey
		return next, nil

	case Disconnected:
		return idle(), nil

	case Restored:
		if cur.Status != StatusIdle {
			return cur, errors.Wrapf(ErrInvalidTransition, "restore from %s", cur.Status)
		}
		if c.Address == "" || c.ProviderName == "" {
			return cur, errors.Wrap(ErrInvalidTransition, "restore without address")
		}
		return WalletSession{
			Address:      c.Address,
			ProviderName: c.ProviderName,
			ChainKey:     c.ChainKey,
			ChainID:      strPtr(c.ChainID),
			Status:       StatusConnected,
		}, nil
	}
	return cur, errors.Wrapf(ErrInvalidTransition, "unknown command %T", cmd)
}
