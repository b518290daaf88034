// Package payment runs the whole purchase: network, funds, transfer,
// confirmation and reporting.
package payment

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-pay-client/internal/balance"
	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/report"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
	"github.com/quantumauth-io/quantum-pay-client/internal/transfer"
)

type Stage string

const (
	StageSession  Stage = "session"
	StageNetwork  Stage = "network"
	StageBalance  Stage = "balance"
	StageTransfer Stage = "transfer"
	StageConfirm  Stage = "confirm"
	StageDone     Stage = "done"
)

var (
	ErrNotConnected    = errors.New("payment: wallet not connected")
	ErrAddressMismatch = errors.New("payment: address is not the connected account")
	ErrSwitchFailed    = errors.New("payment: could not switch network")
	ErrInsufficient    = errors.New("payment: insufficient balance")
)

type Request struct {
	Address         string          `json:"address"`
	ChainKey        chains.Key      `json:"chain"`
	Amount          decimal.Decimal `json:"amount"`
	ParticipationID string          `json:"participationId,omitempty"`
	// WaitForConfirmation blocks until the transfer is mined or the poll bound elapses.
	WaitForConfirmation bool `json:"waitForConfirmation"`
}

// Outcome is what happened, up to the stage where the flow stopped.
type Outcome struct {
	Stage         Stage                `json:"stage"`
	Balance       *balance.Snapshot    `json:"balance,omitempty"`
	Sufficiency   *balance.Sufficiency `json:"sufficiency,omitempty"`
	Result        *transfer.Result     `json:"result,omitempty"`
	Confirmation  confirm.Status       `json:"confirmation,omitempty"`
	ExplorerURL   string               `json:"explorerUrl,omitempty"`
	ExplorerKnown bool                 `json:"explorerKnown,omitempty"`
	Error         string               `json:"error,omitempty"`
}

func (o Outcome) Submitted() bool { return o.Result != nil && o.Result.Success }

// Wallets exposes the connected session and its wallet object.
type Wallets interface {
	Session() session.WalletSession
	Wallet() provider.Wallet
}

type Checkout struct {
	wallets  Wallets
	registry *chains.Registry
	switcher *chains.Switcher
	reader   *balance.Reader
	sender   *transfer.Sender
	poller   *confirm.Poller
	reporter *report.Reporter
	notifier notify.Notifier
}

func NewCheckout(
	wallets Wallets,
	registry *chains.Registry,
	switcher *chains.Switcher,
	reader *balance.Reader,
	sender *transfer.Sender,
	poller *confirm.Poller,
	reporter *report.Reporter,
	notifier notify.Notifier,
) *Checkout {
	if notifier == nil {
		notifier = notify.Discard
	}
	if reporter == nil {
		reporter = report.NewReporter()
	}
	return &Checkout{
		wallets:  wallets,
		registry: registry,
		switcher: switcher,
		reader:   reader,
		sender:   sender,
		poller:   poller,
		reporter: reporter,
		notifier: notifier,
	}
}

// Pay never panics past its boundary and never returns an error: the
// outcome names the stage that stopped the flow.
func (c *Checkout) Pay(ctx context.Context, req Request) Outcome {
	s := c.wallets.Session()
	w := c.wallets.Wallet()
	if !s.Connected() || w == nil {
		return c.stop(StageSession, ErrNotConnected, "Wallet Not Connected", "Connect your wallet to continue")
	}
	if req.Address != "" && !strings.EqualFold(req.Address, s.Address) {
		return c.stop(StageSession, ErrAddressMismatch, "Wrong Account", "Switch your wallet to "+req.Address)
	}

	d, err := c.registry.Get(req.ChainKey)
	if err != nil {
		return c.stop(StageNetwork, err, "Unsupported Network", string(req.ChainKey)+" is not supported")
	}
	if !c.switcher.SwitchChain(ctx, w, d.Key) {
		// the switcher already told the user why
		return Outcome{Stage: StageNetwork, Error: ErrSwitchFailed.Error()}
	}

	snap := c.reader.GetBalance(ctx, w, s.Address, d.Key)
	suff := balance.Check(snap, req.Amount)
	out := Outcome{Stage: StageBalance, Balance: &snap, Sufficiency: &suff}
	if !suff.Sufficient {
		if !snap.Reliable() {
			c.notifier.Notify(notify.Error("Balance Unavailable", "Could not read your "+d.StablecoinSymbol+" balance. Try again shortly."))
		} else {
			c.notifier.Notify(notify.Error("Insufficient Balance", "You need "+suff.Shortfall+" more "+d.StablecoinSymbol))
		}
		out.Error = errors.Wrap(ErrInsufficient, suff.Reason).Error()
		return out
	}

	res := c.sender.SendTransfer(ctx, w, s.Address, req.Amount, d.Key)
	out.Stage = StageTransfer
	out.Result = &res
	if !res.Success {
		title := "Payment Failed"
		if res.Rejected() {
			title = "Payment Cancelled"
		}
		c.notifier.Notify(notify.Error(title, res.Error))
		out.Error = res.Error
		return out
	}

	out.ExplorerURL, out.ExplorerKnown = c.registry.ExplorerTxURL(res.ChainID, res.TxHash)
	c.notifier.Notify(notify.Success("Payment Submitted", "Transaction "+res.TxHash+" sent"))
	c.publish(ctx, report.EventSubmitted, req, res, false, out.ExplorerURL)

	if !req.WaitForConfirmation || c.poller == nil {
		out.Stage = StageDone
		return out
	}

	out.Stage = StageConfirm
	st, err := c.poller.WaitForConfirmation(ctx, d.Key, res.TxHash)
	out.Confirmation = st
	switch {
	case err != nil:
		log.Warn("confirmation wait aborted", "tx_hash", res.TxHash, "error", err)
	case st == confirm.StatusConfirmed:
		out.Stage = StageDone
		c.notifier.Notify(notify.Success("Payment Confirmed", "Your payment is confirmed on "+d.Name))
		c.publish(ctx, report.EventConfirmed, req, res, true, out.ExplorerURL)
	case st == confirm.StatusFailed:
		out.Error = "transaction reverted on chain"
		c.notifier.Notify(notify.Error("Payment Reverted", "The transaction failed on "+d.Name))
		c.publish(ctx, report.EventFailed, req, res, false, out.ExplorerURL)
	default:
		// may still settle later; this is not a failure
		out.Stage = StageDone
		c.notifier.Notify(notify.Info("Payment Pending", "Your transaction is still being confirmed"))
	}
	return out
}

func (c *Checkout) publish(ctx context.Context, typ string, req Request, res transfer.Result, confirmed bool, url string) {
	ev := report.NewEvent(typ, req.ParticipationID, res)
	ev.Confirmed = confirmed
	ev.ExplorerURL = url
	c.reporter.Report(context.WithoutCancel(ctx), ev)
}

func (c *Checkout) stop(stage Stage, err error, title, msg string) Outcome {
	c.notifier.Notify(notify.Error(title, msg))
	return Outcome{Stage: stage, Error: err.Error()}
}
