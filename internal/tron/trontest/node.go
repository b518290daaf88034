// Package trontest has an in-memory TRON node for tests.
package trontest

import (
	"context"
	"math/big"
	"sync"

	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"

	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
)

// Transfer records one BuildTRC20Transfer call.
type Transfer struct {
	From, To, Contract string
	Amount             *big.Int
}

type Node struct {
	mu sync.Mutex

	Balances     map[string]*big.Int // holder -> balance
	BalanceErr   error
	BuildErr     error
	BroadcastErr error
	Infos        map[string]tron.Info
	InfoErr      error

	Built       []Transfer
	Broadcasted []*core.Transaction
	InfoCalls   int
}

func New() *Node {
	return &Node{Balances: map[string]*big.Int{}, Infos: map[string]tron.Info{}}
}

func (n *Node) TRC20Balance(_ context.Context, holder, _ string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.BalanceErr != nil {
		return nil, n.BalanceErr
	}
	if b, ok := n.Balances[holder]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (n *Node) BuildTRC20Transfer(_ context.Context, from, to, contract string, amount *big.Int) (*core.Transaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.BuildErr != nil {
		return nil, n.BuildErr
	}
	n.Built = append(n.Built, Transfer{From: from, To: to, Contract: contract, Amount: new(big.Int).Set(amount)})
	return &core.Transaction{
		RawData: &core.TransactionRaw{
			RefBlockBytes: []byte{byte(len(n.Built))},
			Data:          []byte(to),
			FeeLimit:      tron.DefaultFeeLimit,
		},
	}, nil
}

func (n *Node) Broadcast(_ context.Context, tx *core.Transaction) (string, error) {
	if len(tx.GetSignature()) == 0 {
		return "", tron.ErrUnsigned
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.BroadcastErr != nil {
		return "", n.BroadcastErr
	}
	n.Broadcasted = append(n.Broadcasted, tx)
	return tron.TxID(tx)
}

func (n *Node) TransactionInfo(_ context.Context, txID string) (tron.Info, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.InfoCalls++
	if n.InfoErr != nil {
		return tron.Info{}, n.InfoErr
	}
	return n.Infos[txID], nil
}

// SetInfo marks txID as mined (or not) for later TransactionInfo calls.
func (n *Node) SetInfo(txID string, info tron.Info) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Infos[txID] = info
}
