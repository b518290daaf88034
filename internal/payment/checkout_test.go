package payment

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/balance"
	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/directory"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider/providertest"
	"github.com/quantumauth-io/quantum-pay-client/internal/report"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
	"github.com/quantumauth-io/quantum-pay-client/internal/transfer"
)

const (
	payer   = "0x1111111111111111111111111111111111111111"
	company = "0x2222222222222222222222222222222222222222"
	txHash  = "0x9b1c0a3b5d7e2f4a6c8e0b1d3f5a7c9e1b3d5f7a9c1e3b5d7f9a1c3e5b7d9f1a"
)

type fixedWallets struct {
	s session.WalletSession
	w provider.Wallet
}

func (f fixedWallets) Session() session.WalletSession { return f.s }
func (f fixedWallets) Wallet() provider.Wallet        { return f.w }

type companyDir struct{}

func (companyDir) Lookup(context.Context, chains.Key) (string, directory.Source, error) {
	return company, directory.SourceRemote, nil
}

type sink struct {
	mu     sync.Mutex
	events []report.Event
}

func (s *sink) Report(_ context.Context, ev report.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type receipts struct{ status uint64 }

func (r receipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if r.status == 99 {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: r.status}, nil
}

func word(n int64) string {
	s := big.NewInt(n).Text(16)
	return "0x" + strings.Repeat("0", 64-len(s)) + s
}

type fixture struct {
	wallet *providertest.Wallet
	feed   *notify.Feed
	sink   *sink
	co     *Checkout
}

func newFixture(t *testing.T, balanceUnits int64, receipt uint64) *fixture {
	t.Helper()
	reg := chains.Default()
	feed := notify.NewFeed(20)
	rec := &sink{}

	w := providertest.New("quantumauth").
		Reply("wallet_switchEthereumChain", nil).
		Reply("eth_call", word(balanceUnits)).
		Reply("eth_sendTransaction", txHash)

	chainID := "0x89"
	s := session.WalletSession{Address: payer, ProviderName: "quantumauth", ChainID: &chainID, ChainKey: string(chains.Polygon), Status: session.StatusConnected}

	poller := confirm.NewPoller(confirm.Config{MaxWait: 50 * time.Millisecond, Interval: 5 * time.Millisecond, RequestsPerSecond: 1000}, reg, nil,
		confirm.WithDialer(func(context.Context, string) (confirm.ReceiptReader, error) { return receipts{status: receipt}, nil }))

	co := NewCheckout(
		fixedWallets{s: s, w: w},
		reg,
		chains.NewSwitcher(reg, feed),
		balance.NewReader(reg, nil),
		transfer.NewSender(reg, companyDir{}, nil),
		poller,
		report.NewReporter().With("test", rec),
		feed,
	)
	return &fixture{wallet: w, feed: feed, sink: rec, co: co}
}

func TestPayConfirmed(t *testing.T) {
	f := newFixture(t, 500_000_000, types.ReceiptStatusSuccessful)

	out := f.co.Pay(context.Background(), Request{
		Address:             payer,
		ChainKey:            chains.Polygon,
		Amount:              decimal.NewFromInt(100),
		ParticipationID:     "p-1",
		WaitForConfirmation: true,
	})
	require.Empty(t, out.Error)
	require.Equal(t, StageDone, out.Stage)
	require.True(t, out.Submitted())
	require.Equal(t, txHash, out.Result.TxHash)
	require.Equal(t, confirm.StatusConfirmed, out.Confirmation)
	require.Equal(t, "https://polygonscan.com/tx/"+txHash, out.ExplorerURL)
	require.True(t, out.ExplorerKnown)
	require.Equal(t, "500.00", out.Balance.Formatted)

	require.Equal(t, []string{report.EventSubmitted, report.EventConfirmed}, f.sink.types())
	require.Equal(t, "p-1", f.sink.events[1].ParticipationID)
	require.True(t, f.sink.events[1].Confirmed)

	last, ok := f.feed.Last()
	require.True(t, ok)
	require.Equal(t, "Payment Confirmed", last.Title)
	require.Len(t, f.wallet.Calls("wallet_switchEthereumChain"), 1)
}

func TestPayWithoutWaiting(t *testing.T) {
	f := newFixture(t, 500_000_000, 99)
	out := f.co.Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1)})
	require.Equal(t, StageDone, out.Stage)
	require.Empty(t, out.Confirmation)
	require.Equal(t, []string{report.EventSubmitted}, f.sink.types())
}

func TestPayPendingIsNotFailure(t *testing.T) {
	f := newFixture(t, 500_000_000, 99)
	out := f.co.Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1), WaitForConfirmation: true})
	require.Empty(t, out.Error)
	require.Equal(t, StageDone, out.Stage)
	require.Equal(t, confirm.StatusPending, out.Confirmation)
	last, _ := f.feed.Last()
	require.Equal(t, notify.LevelInfo, last.Level)
}

func TestPayReverted(t *testing.T) {
	f := newFixture(t, 500_000_000, types.ReceiptStatusFailed)
	out := f.co.Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1), WaitForConfirmation: true})
	require.Equal(t, StageConfirm, out.Stage)
	require.Equal(t, confirm.StatusFailed, out.Confirmation)
	require.NotEmpty(t, out.Error)
	require.Equal(t, []string{report.EventSubmitted, report.EventFailed}, f.sink.types())
}

func TestPayInsufficientStopsBeforeTransfer(t *testing.T) {
	f := newFixture(t, 5_000_000, types.ReceiptStatusSuccessful)
	out := f.co.Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(10)})
	require.Equal(t, StageBalance, out.Stage)
	require.False(t, out.Sufficiency.Sufficient)
	require.Equal(t, "5.00", out.Sufficiency.Shortfall)
	require.ErrorContains(t, ErrInsufficient, "insufficient")
	require.Contains(t, out.Error, "insufficient balance")
	require.Empty(t, f.wallet.Calls("eth_sendTransaction"))
	require.Empty(t, f.sink.types())

	last, _ := f.feed.Last()
	require.Equal(t, "Insufficient Balance", last.Title)
}

func TestPayRejectedTransfer(t *testing.T) {
	f := newFixture(t, 500_000_000, types.ReceiptStatusSuccessful)
	f.wallet.Fail("eth_sendTransaction", provider.CodeUserRejected, "User denied transaction signature")

	out := f.co.Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1)})
	require.Equal(t, StageTransfer, out.Stage)
	require.False(t, out.Submitted())
	require.Empty(t, f.sink.types())
	last, _ := f.feed.Last()
	require.Equal(t, "Payment Cancelled", last.Title)
	require.Equal(t, provider.CodeUserRejected, out.Result.ErrorCode)
}

func TestPayCancelledFollowsWalletCode(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		msg   string
		title string
	}{
		{"rejection without keywords", provider.CodeUserRejected, "Request cancelled", "Payment Cancelled"},
		{"keyword without rejection", provider.CodeInternal, "transaction rejected by node", "Payment Failed"},
		{"denied wording from rpc", -32000, "permission denied", "Payment Failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 500_000_000, types.ReceiptStatusSuccessful)
			f.wallet.Fail("eth_sendTransaction", tc.code, tc.msg)

			out := f.co.Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1)})
			require.Equal(t, StageTransfer, out.Stage)
			last, _ := f.feed.Last()
			require.Equal(t, tc.title, last.Title)
		})
	}
}

func TestPayGuards(t *testing.T) {
	reg := chains.Default()
	feed := notify.NewFeed(5)
	mk := func(w fixedWallets) *Checkout {
		return NewCheckout(w, reg, chains.NewSwitcher(reg, feed), balance.NewReader(reg, nil),
			transfer.NewSender(reg, companyDir{}, nil), nil, nil, feed)
	}

	out := mk(fixedWallets{}).Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1)})
	require.Equal(t, StageSession, out.Stage)
	require.Equal(t, ErrNotConnected.Error(), out.Error)

	connected := fixedWallets{
		s: session.WalletSession{Address: payer, Status: session.StatusConnected},
		w: providertest.New("w"),
	}
	out = mk(connected).Pay(context.Background(), Request{Address: company, ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1)})
	require.Equal(t, ErrAddressMismatch.Error(), out.Error)

	out = mk(connected).Pay(context.Background(), Request{ChainKey: "solana", Amount: decimal.NewFromInt(1)})
	require.Equal(t, StageNetwork, out.Stage)

	// switch unsupported by the scripted wallet
	out = mk(connected).Pay(context.Background(), Request{ChainKey: chains.Polygon, Amount: decimal.NewFromInt(1)})
	require.Equal(t, StageNetwork, out.Stage)
	require.Equal(t, ErrSwitchFailed.Error(), out.Error)
}
