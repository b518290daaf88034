// Package transfer submits stablecoin transfers to the company wallet.
package transfer

import (
	"context"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/directory"
	"github.com/quantumauth-io/quantum-pay-client/internal/erc20"
	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
)

var (
	ErrNoWallet        = errors.New("transfer: no wallet")
	ErrNotTronSigner   = errors.New("transfer: wallet cannot sign tron transactions")
	ErrSignerMismatch  = errors.New("transfer: wallet account does not match sender")
	ErrTamperedTx      = errors.New("transfer: signed transaction differs from the one built")
	ErrNoNode          = errors.New("transfer: tron node not configured")
	ErrInvalidTxHash   = errors.New("transfer: wallet returned an invalid transaction hash")
	ErrSelfDestination = errors.New("transfer: sender is the company wallet")
)

// Result is the terminal outcome of one submission. TxHash is set exactly
// when Success is true.
type Result struct {
	Success  bool       `json:"success"`
	TxHash   string     `json:"txHash,omitempty"`
	ChainID  string     `json:"chainId"`
	ChainKey chains.Key `json:"chainKey"`
	Amount   string     `json:"amount"`
	From     string     `json:"from"`
	To       string     `json:"to,omitempty"`
	Error    string     `json:"error,omitempty"`
	// ErrorCode is the wallet's EIP-1193 code when the wallet refused.
	ErrorCode int `json:"errorCode,omitempty"`
}

// Rejected reports whether the user declined the transaction in the wallet.
func (r Result) Rejected() bool { return r.ErrorCode == provider.CodeUserRejected }

// Destinations resolves the receiving address for a chain.
type Destinations interface {
	Lookup(ctx context.Context, key chains.Key) (string, directory.Source, error)
}

type Sender struct {
	registry     *chains.Registry
	destinations Destinations
	node         tron.Node
}

func NewSender(registry *chains.Registry, destinations Destinations, node tron.Node) *Sender {
	return &Sender{registry: registry, destinations: destinations, node: node}
}

type sendTxParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// SendTransfer never fails: problems come back as Success false with the
// wallet's message.
func (s *Sender) SendTransfer(ctx context.Context, w provider.Wallet, from string, amount decimal.Decimal, key chains.Key) Result {
	res := Result{ChainKey: key, Amount: amount.String(), From: from}

	d, err := s.registry.Get(key)
	if err != nil {
		return s.fail(res, err)
	}
	res.ChainKey = d.Key
	res.ChainID = d.ReportedChainID()

	to, src, err := s.destinations.Lookup(ctx, d.Key)
	if err != nil {
		return s.fail(res, err)
	}
	if to == "" {
		return s.fail(res, errors.Wrapf(directory.ErrNoDestination, "%s", d.Key))
	}
	res.To = to
	if strings.EqualFold(to, from) {
		return s.fail(res, ErrSelfDestination)
	}

	raw, err := erc20.ToBaseUnits(amount, d.StablecoinDecimals)
	if err != nil {
		return s.fail(res, err)
	}

	log.Info("submitting transfer", "chain", d.Key, "from", from, "to", to, "amount", res.Amount, "destination_source", src)

	var hash string
	if d.IsEVM() {
		hash, err = s.sendEVM(ctx, w, from, to, raw, d)
	} else {
		hash, err = s.sendTron(ctx, w, from, to, raw, d)
	}
	if err != nil {
		return s.fail(res, err)
	}

	res.Success = true
	res.TxHash = hash
	metrics.Transfers.WithLabelValues(string(d.Key), "success").Inc()
	log.Info("transfer submitted", "chain", d.Key, "tx_hash", hash)
	return res
}

func (s *Sender) sendEVM(ctx context.Context, w provider.Wallet, from, to string, amount *big.Int, d chains.Descriptor) (string, error) {
	if w == nil {
		return "", ErrNoWallet
	}
	if err := chains.ValidateAddress(d.Family, from); err != nil {
		return "", err
	}
	toBytes, err := chains.AccountBytes(d.Family, to)
	if err != nil {
		return "", err
	}
	data, err := erc20.EncodeTransfer(toBytes, amount)
	if err != nil {
		return "", err
	}

	// the tokens travel in data; any native value here would be sent on top
	tx := sendTxParams{From: from, To: d.StablecoinContract, Data: data, Value: "0x0"}

	var hash string
	if err := provider.CallInto(ctx, w, &hash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	b, err := hexutil.Decode(hash)
	if err != nil || len(b) != 32 {
		return "", errors.Wrapf(ErrInvalidTxHash, "%q", hash)
	}
	return hash, nil
}

func (s *Sender) sendTron(ctx context.Context, w provider.Wallet, from, to string, amount *big.Int, d chains.Descriptor) (string, error) {
	if s.node == nil {
		return "", ErrNoNode
	}
	tw, ok := w.(provider.TronWallet)
	if !ok {
		return "", ErrNotTronSigner
	}
	if err := chains.ValidateAddress(d.Family, from); err != nil {
		return "", err
	}
	signer, err := tw.TronAddress(ctx)
	if err != nil {
		return "", err
	}
	if signer != from {
		return "", errors.Wrapf(ErrSignerMismatch, "wallet %s, sender %s", signer, from)
	}

	tx, err := s.node.BuildTRC20Transfer(ctx, from, to, d.StablecoinContract, amount)
	if err != nil {
		return "", err
	}
	builtID, err := tron.TxID(tx)
	if err != nil {
		return "", err
	}

	signed, err := tw.SignTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	signedID, err := tron.TxID(signed)
	if err != nil {
		return "", err
	}
	if signedID != builtID {
		return "", ErrTamperedTx
	}

	return s.node.Broadcast(ctx, signed)
}

func (s *Sender) fail(res Result, err error) Result {
	res.Success = false
	res.TxHash = ""
	res.Error = provider.MessageOf(err)
	if code, ok := provider.CodeOf(err); ok {
		res.ErrorCode = code
	}
	metrics.Transfers.WithLabelValues(string(res.ChainKey), "failure").Inc()
	log.Warn("transfer failed", "chain", res.ChainKey, "from", res.From, "to", res.To, "error", err)
	return res
}
