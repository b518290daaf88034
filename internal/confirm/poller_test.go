package confirm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron/trontest"
)

const evmHash = "0x9b1c0a3b5d7e2f4a6c8e0b1d3f5a7c9e1b3d5f7a9c1e3b5d7f9a1c3e5b7d9f1a"

type fakeReceipts struct {
	pendingFor int32
	status     uint64
	err        error
	calls      atomic.Int32
}

func (f *fakeReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if n <= f.pendingFor {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status}, nil
}

func fastConfig(maxWait time.Duration) Config {
	return Config{MaxWait: maxWait, Interval: 5 * time.Millisecond, RequestsPerSecond: 1000}
}

func pollerWith(rr ReceiptReader, dials *atomic.Int32, maxWait time.Duration, node tron.Node) *Poller {
	return NewPoller(fastConfig(maxWait), chains.Default(), node, WithDialer(func(context.Context, string) (ReceiptReader, error) {
		if dials != nil {
			dials.Add(1)
		}
		return rr, nil
	}))
}

func TestConfirmedAfterPending(t *testing.T) {
	rr := &fakeReceipts{pendingFor: 3, status: types.ReceiptStatusSuccessful}
	var dials atomic.Int32
	p := pollerWith(rr, &dials, time.Second, nil)

	st, err := p.WaitForConfirmation(context.Background(), chains.Polygon, evmHash)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, st)
	require.EqualValues(t, 4, rr.calls.Load())

	require.True(t, p.Confirmed(context.Background(), chains.Polygon, evmHash))
	require.EqualValues(t, 1, dials.Load(), "client is cached per chain")
}

func TestRevertedReceipt(t *testing.T) {
	p := pollerWith(&fakeReceipts{status: types.ReceiptStatusFailed}, nil, time.Second, nil)
	st, err := p.WaitForConfirmation(context.Background(), chains.BSC, evmHash)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, st)
}

func TestBoundElapsedIsPendingNotFailure(t *testing.T) {
	p := pollerWith(&fakeReceipts{pendingFor: 1 << 30}, nil, 40*time.Millisecond, nil)

	st, err := p.WaitForConfirmation(context.Background(), chains.Ethereum, evmHash)
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)
	require.False(t, p.Confirmed(context.Background(), chains.Ethereum, evmHash))
}

func TestTransientErrorsKeepPolling(t *testing.T) {
	rr := &fakeReceipts{err: errors.New("502 bad gateway")}
	p := pollerWith(rr, nil, 40*time.Millisecond, nil)

	st, err := p.WaitForConfirmation(context.Background(), chains.Ethereum, evmHash)
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)
	require.Greater(t, rr.calls.Load(), int32(1))
}

func TestCallerCancelIsAnError(t *testing.T) {
	p := pollerWith(&fakeReceipts{pendingFor: 1 << 30}, nil, time.Minute, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	st, err := p.WaitForConfirmation(ctx, chains.Ethereum, evmHash)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StatusPending, st)
}

func TestBadInput(t *testing.T) {
	p := pollerWith(&fakeReceipts{}, nil, time.Second, nil)
	ctx := context.Background()

	_, err := p.WaitForConfirmation(ctx, chains.Ethereum, "0x1234")
	require.ErrorIs(t, err, ErrBadTxHash)

	_, err = p.WaitForConfirmation(ctx, "solana", evmHash)
	require.ErrorIs(t, err, chains.ErrUnknownChain)

	_, err = p.WaitForConfirmation(ctx, chains.Tron, evmHash)
	require.ErrorIs(t, err, ErrNoNode)
}

func TestTronConfirmation(t *testing.T) {
	node := trontest.New()
	id := evmHash[2:]
	p := pollerWith(nil, nil, 200*time.Millisecond, node)

	st, err := p.WaitForConfirmation(context.Background(), chains.Tron, id)
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)
	require.Greater(t, node.InfoCalls, 1)

	node.SetInfo(id, tron.Info{Found: true, BlockNumber: 100})
	require.True(t, p.Confirmed(context.Background(), chains.Tron, id))

	node.SetInfo(id, tron.Info{Found: true, BlockNumber: 100, Failed: true})
	st, err = p.WaitForConfirmation(context.Background(), chains.Tron, "0x"+id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, st)
}
