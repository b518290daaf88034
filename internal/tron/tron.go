// Package tron talks to a TRON full node over gRPC for TRC20 reads,
// transfer construction and broadcast. Signing is never done here.
package tron

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fbsobreira/gotron-sdk/pkg/client"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/api"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
)

const (
	DefaultEndpoint = "grpc.trongrid.io:50051"
	// DefaultFeeLimit is 100 TRX in sun, enough for a USDT transfer with no staked energy.
	DefaultFeeLimit int64 = 100_000_000
	defaultTimeout        = 15 * time.Second
)

var (
	ErrBuildFailed     = errors.New("tron: transaction build rejected")
	ErrBroadcastFailed = errors.New("tron: broadcast rejected")
	ErrUnsigned        = errors.New("tron: transaction has no signature")
)

// Info is the mined state of a transaction.
type Info struct {
	Found       bool
	BlockNumber int64
	Failed      bool
	Message     string
}

// Node is the subset of a TRON full node the payment flow uses.
type Node interface {
	TRC20Balance(ctx context.Context, holder, contract string) (*big.Int, error)
	BuildTRC20Transfer(ctx context.Context, from, to, contract string, amount *big.Int) (*core.Transaction, error)
	Broadcast(ctx context.Context, tx *core.Transaction) (string, error)
	TransactionInfo(ctx context.Context, txID string) (Info, error)
}

type Config struct {
	Endpoint string        `yaml:"Endpoint"`
	APIKey   string        `yaml:"APIKey"`
	FeeLimit int64         `yaml:"FeeLimit"`
	Timeout  time.Duration `yaml:"Timeout"`
}

// Client is a Node backed by gotron-sdk's gRPC client.
type Client struct {
	mu       sync.Mutex
	grpc     *client.GrpcClient
	feeLimit int64
	endpoint string
}

// Dial starts the gRPC connection. TronGrid requires plaintext gRPC with an API key header.
func Dial(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.FeeLimit <= 0 {
		cfg.FeeLimit = DefaultFeeLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	g := client.NewGrpcClientWithTimeout(cfg.Endpoint, cfg.Timeout)
	if cfg.APIKey != "" {
		if err := g.SetAPIKey(cfg.APIKey); err != nil {
			return nil, errors.Wrap(err, "set tron api key")
		}
	}
	if err := g.Start(grpc.WithTransportCredentials(insecure.NewCredentials())); err != nil {
		return nil, errors.Wrapf(err, "start tron grpc client %s", cfg.Endpoint)
	}
	log.Info("tron node connected", "endpoint", cfg.Endpoint)

	return &Client{grpc: g, feeLimit: cfg.FeeLimit, endpoint: cfg.Endpoint}, nil
}

// The sdk bounds each call with its own timeout; ctx is only checked up front.
func (c *Client) node(ctx context.Context) (*client.GrpcClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grpc == nil {
		return nil, errors.New("tron: client closed")
	}
	return c.grpc, nil
}

func (c *Client) TRC20Balance(ctx context.Context, holder, contract string) (*big.Int, error) {
	g, err := c.node(ctx)
	if err != nil {
		return nil, err
	}
	bal, err := g.TRC20ContractBalance(holder, contract)
	if err != nil {
		return nil, errors.Wrapf(err, "trc20 balanceOf %s", holder)
	}
	return bal, nil
}

func (c *Client) BuildTRC20Transfer(ctx context.Context, from, to, contract string, amount *big.Int) (*core.Transaction, error) {
	g, err := c.node(ctx)
	if err != nil {
		return nil, err
	}
	ext, err := g.TRC20Send(from, to, contract, amount, c.feeLimit)
	if err != nil {
		return nil, errors.Wrap(err, "build trc20 transfer")
	}
	if err := checkReturn(ext.GetResult()); err != nil {
		return nil, errors.Wrap(ErrBuildFailed, err.Error())
	}
	if ext.GetTransaction() == nil {
		return nil, errors.Wrap(ErrBuildFailed, "node returned no transaction")
	}
	return ext.GetTransaction(), nil
}

// Broadcast submits a signed transaction and returns its id.
func (c *Client) Broadcast(ctx context.Context, tx *core.Transaction) (string, error) {
	if len(tx.GetSignature()) == 0 {
		return "", ErrUnsigned
	}
	id, err := TxID(tx)
	if err != nil {
		return "", err
	}
	g, err := c.node(ctx)
	if err != nil {
		return "", err
	}
	ret, err := g.Broadcast(tx)
	if err != nil {
		return "", errors.Wrap(ErrBroadcastFailed, err.Error())
	}
	if err := checkReturn(ret); err != nil {
		return "", errors.Wrap(ErrBroadcastFailed, err.Error())
	}
	return id, nil
}

func (c *Client) TransactionInfo(ctx context.Context, txID string) (Info, error) {
	g, err := c.node(ctx)
	if err != nil {
		return Info{}, err
	}
	info, err := g.GetTransactionInfoByID(strings.TrimPrefix(txID, "0x"))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return Info{}, nil
		}
		return Info{}, errors.Wrapf(err, "transaction info %s", txID)
	}
	return Info{
		Found:       info.GetBlockNumber() > 0,
		BlockNumber: info.GetBlockNumber(),
		Failed:      info.GetResult() == core.TransactionInfo_FAILED,
		Message:     string(info.GetResMessage()),
	}, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grpc != nil {
		c.grpc.Stop()
		c.grpc = nil
		log.Info("tron node disconnected", "endpoint", c.endpoint)
	}
}

// TxID is the transaction hash: sha256 of the serialised raw data.
func TxID(tx *core.Transaction) (string, error) {
	if tx == nil || tx.GetRawData() == nil {
		return "", errors.New("tron: transaction without raw data")
	}
	raw, err := proto.Marshal(tx.GetRawData())
	if err != nil {
		return "", errors.Wrap(err, "marshal raw data")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func checkReturn(r *api.Return) error {
	if r == nil {
		return nil
	}
	if !r.GetResult() && r.GetCode() != api.Return_SUCCESS {
		return errors.Newf("%s: %s", r.GetCode(), string(r.GetMessage()))
	}
	return nil
}
