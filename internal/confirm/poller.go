// Package confirm waits, within a bound, for submitted transfers to be mined.
package confirm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/time/rate"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
)

const (
	DefaultMaxWait  = 5 * time.Minute
	DefaultInterval = 3 * time.Second
)

var (
	ErrNoRPC     = errors.New("confirm: chain has no rpc url")
	ErrNoNode    = errors.New("confirm: tron node not configured")
	ErrBadTxHash = errors.New("confirm: malformed transaction hash")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// ReceiptReader is the part of an EVM node client the poller needs.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Dialer func(ctx context.Context, url string) (ReceiptReader, error)

func dialEthclient(ctx context.Context, url string) (ReceiptReader, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to connect to blockchain at %s", url)
	}
	return c, nil
}

type Config struct {
	MaxWait  time.Duration `yaml:"MaxWait"`
	Interval time.Duration `yaml:"Interval"`
	// RequestsPerSecond caps node calls across every concurrent wait.
	RequestsPerSecond float64 `yaml:"RequestsPerSecond"`
}

type Poller struct {
	registry *chains.Registry
	node     tron.Node
	dial     Dialer
	maxWait  time.Duration
	interval time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	clients map[chains.Key]ReceiptReader
}

type Option func(*Poller)

func WithDialer(d Dialer) Option { return func(p *Poller) { p.dial = d } }

func NewPoller(cfg Config, registry *chains.Registry, node tron.Node, opts ...Option) *Poller {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	p := &Poller{
		registry: registry,
		node:     node,
		dial:     dialEthclient,
		maxWait:  cfg.MaxWait,
		interval: cfg.Interval,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		clients:  map[chains.Key]ReceiptReader{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Confirmed reports whether hash was mined successfully within the bound.
// False means "not known yet", never "reversed".
func (p *Poller) Confirmed(ctx context.Context, key chains.Key, hash string) bool {
	st, err := p.WaitForConfirmation(ctx, key, hash)
	return err == nil && st == StatusConfirmed
}

// WaitForConfirmation polls until hash is mined or the wait bound elapses.
// Running out of time yields StatusPending with a nil error.
func (p *Poller) WaitForConfirmation(ctx context.Context, key chains.Key, hash string) (Status, error) {
	d, err := p.registry.Get(key)
	if err != nil {
		return StatusPending, err
	}

	check, err := p.checker(ctx, d, hash)
	if err != nil {
		return StatusPending, err
	}

	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, p.maxWait)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := 0
	for {
		if err := p.limiter.Wait(wctx); err != nil {
			return p.done(ctx, d, hash, start, polls)
		}
		polls++
		st, err := check(wctx)
		switch {
		case err != nil:
			log.Info("confirmation check failed, will retry", "chain", d.Key, "tx_hash", hash, "error", err)
		case st != StatusPending:
			metrics.ConfirmationWait.WithLabelValues(string(d.Key), string(st)).Observe(time.Since(start).Seconds())
			log.Info("transaction settled", "chain", d.Key, "tx_hash", hash, "status", st, "polls", polls)
			return st, nil
		}

		select {
		case <-wctx.Done():
			return p.done(ctx, d, hash, start, polls)
		case <-ticker.C:
		}
	}
}

// done reports a bound that ran out. Only the caller cancelling is an error.
func (p *Poller) done(ctx context.Context, d chains.Descriptor, hash string, start time.Time, polls int) (Status, error) {
	metrics.ConfirmationWait.WithLabelValues(string(d.Key), string(StatusPending)).Observe(time.Since(start).Seconds())
	if err := ctx.Err(); err != nil {
		return StatusPending, err
	}
	log.Info("transaction still pending after wait bound", "chain", d.Key, "tx_hash", hash, "polls", polls)
	return StatusPending, nil
}

func (p *Poller) checker(ctx context.Context, d chains.Descriptor, hash string) (func(context.Context) (Status, error), error) {
	if !d.IsEVM() {
		if p.node == nil {
			return nil, ErrNoNode
		}
		id := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hash)), "0x")
		if len(id) != 64 {
			return nil, errors.Wrapf(ErrBadTxHash, "%q", hash)
		}
		return func(ctx context.Context) (Status, error) {
			info, err := p.node.TransactionInfo(ctx, id)
			if err != nil || !info.Found {
				return StatusPending, err
			}
			if info.Failed {
				return StatusFailed, nil
			}
			return StatusConfirmed, nil
		}, nil
	}

	h := strings.TrimSpace(hash)
	if len(h) != 66 || !strings.HasPrefix(h, "0x") {
		return nil, errors.Wrapf(ErrBadTxHash, "%q", hash)
	}
	client, err := p.client(ctx, d)
	if err != nil {
		return nil, err
	}
	txHash := common.HexToHash(h)
	return func(ctx context.Context) (Status, error) {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return StatusPending, nil
		}
		if err != nil {
			return StatusPending, err
		}
		if receipt.Status == types.ReceiptStatusSuccessful {
			return StatusConfirmed, nil
		}
		return StatusFailed, nil
	}, nil
}

// client returns the cached node client for d, dialing on first use.
func (p *Poller) client(ctx context.Context, d chains.Descriptor) (ReceiptReader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[d.Key]; ok {
		return c, nil
	}
	if len(d.RPCURLs) == 0 {
		return nil, errors.Wrapf(ErrNoRPC, "%s", d.Key)
	}

	var lastErr error
	for _, url := range d.RPCURLs {
		c, err := p.dial(ctx, url)
		if err != nil {
			lastErr = err
			log.Warn("rpc dial failed", "chain", d.Key, "url", url, "error", err)
			continue
		}
		p.clients[d.Key] = c
		return c, nil
	}
	return nil, lastErr
}
