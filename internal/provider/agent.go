package provider

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"github.com/gorilla/websocket"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/retry"
	"google.golang.org/protobuf/proto"
)

const (
	extensionPairHeader = "X-QA-Extension"
	agentConstructor    = "QuantumAuthProvider"
	maxAgentBody        = 1 << 20
)

// AgentConfig points at a paired quantum-auth wallet agent. When Token is
// set it wins over PairingToken and lets the caller re-pair at runtime.
type AgentConfig struct {
	BaseURL      string
	PairingToken string
	Token        *AgentToken
	Origin       string
	Timeout      time.Duration
}

// AgentToken holds the pairing token shared by the agent wallets.
type AgentToken struct {
	v atomic.Pointer[string]
}

func NewAgentToken(token string) *AgentToken {
	t := &AgentToken{}
	t.Set(token)
	return t
}

func (t *AgentToken) Set(token string) {
	token = strings.TrimSpace(token)
	t.v.Store(&token)
}

func (t *AgentToken) Get() string {
	if p := t.v.Load(); p != nil {
		return *p
	}
	return ""
}

type agentClient struct {
	base   *url.URL
	token  *AgentToken
	origin string
	http   *http.Client
}

func newAgentClient(cfg AgentConfig) (*agentClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("provider: invalid agent url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// wallet prompts can sit open until the connect timeout fires
		timeout = 35 * time.Second
	}
	token := cfg.Token
	if token == nil {
		token = NewAgentToken(cfg.PairingToken)
	}
	return &agentClient{
		base:   u,
		token:  token,
		origin: cfg.Origin,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

func (c *agentClient) endpoint(path string) string {
	return c.base.String() + path
}

func (c *agentClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal agent request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *agentClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *agentClient) do(req *http.Request, out any) error {
	if tok := c.token.Get(); tok != "" {
		req.Header.Set(extensionPairHeader, tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "agent %s", req.URL.Path)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxAgentBody))
	if err != nil {
		return errors.Wrapf(err, "read agent %s", req.URL.Path)
	}

	if len(bytes.TrimSpace(b)) == 0 && resp.StatusCode < 300 {
		return nil
	}

	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if jerr := json.Unmarshal(b, &env); jerr != nil {
		// guards answer with plain text
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = resp.Status
		}
		return &AgentError{Status: resp.StatusCode, Message: msg}
	}
	if err := decodeAgentError(resp, env.Error); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return &AgentError{Status: resp.StatusCode, Message: resp.Status}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

// decodeAgentError accepts both {"error":{code,message}} and {"ok":false,"error":"..."}.
// Only the object form comes from the wallet; a bare string is the agent talking.
func decodeAgentError(resp *http.Response, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return nil
	}
	if raw[0] == '{' {
		var e RPCError
		if err := json.Unmarshal(raw, &e); err == nil && (e.Code != 0 || e.Message != "") {
			return &e
		}
	}
	msg := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		msg = s
	}
	return &AgentError{Status: resp.StatusCode, Message: msg}
}

// AgentWallet drives the EVM side of a paired quantum-auth agent.
type AgentWallet struct {
	client *agentClient
	dialer *websocket.Dialer

	mu        sync.Mutex
	listeners map[string]map[ListenerID]Listener
	nextID    ListenerID
	stop      context.CancelFunc
}

func NewAgentWallet(cfg AgentConfig) (*AgentWallet, error) {
	c, err := newAgentClient(cfg)
	if err != nil {
		return nil, err
	}
	return &AgentWallet{
		client:    c,
		dialer:    websocket.DefaultDialer,
		listeners: map[string]map[ListenerID]Listener{},
	}, nil
}

func (w *AgentWallet) Label() string { return "quantumauth-agent:" + w.client.base.Host }

func (w *AgentWallet) BrandFlags() map[string]bool {
	return map[string]bool{BrandFlag: true}
}

func (w *AgentWallet) ConstructorName() string { return agentConstructor }

type agentTx struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
	Gas   string `json:"gas,omitempty"`
}

func (w *AgentWallet) Request(ctx context.Context, args Args) (json.RawMessage, error) {
	switch args.Method {
	case "eth_requestAccounts", "eth_accounts":
		var out struct {
			Accounts []string `json:"accounts"`
		}
		silent := args.Method == "eth_accounts"
		in := map[string]bool{"silent": silent, "prompt": !silent}
		if err := w.client.post(ctx, "/wallet/accounts", in, &out); err != nil {
			return nil, err
		}
		if out.Accounts == nil {
			out.Accounts = []string{}
		}
		return json.Marshal(out.Accounts)

	case "eth_chainId":
		var out struct {
			ChainIDHex string `json:"chainIdHex"`
		}
		if err := w.client.get(ctx, "/wallet/chainId", &out); err != nil {
			return nil, err
		}
		return json.Marshal(out.ChainIDHex)

	case "wallet_switchEthereumChain":
		var p struct {
			ChainID string `json:"chainId"`
		}
		if err := firstParam(args, &p); err != nil || p.ChainID == "" {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "missing chainId"}
		}
		var out struct {
			NotAdded bool `json:"notAdded"`
		}
		if err := w.client.post(ctx, "/wallet/switchChain", map[string]string{"chainIdHex": p.ChainID}, &out); err != nil {
			return nil, err
		}
		if out.NotAdded {
			return nil, &RPCError{Code: CodeChainNotAdded, Message: "Unrecognized chain ID " + p.ChainID}
		}
		return json.RawMessage("null"), nil

	case "eth_sendTransaction":
		var tx agentTx
		if err := firstParam(args, &tx); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid transaction"}
		}
		var out struct {
			TxHash string `json:"txHash"`
		}
		if err := w.client.post(ctx, "/wallet/sendTransaction", map[string]any{"tx": tx}, &out); err != nil {
			return nil, err
		}
		if out.TxHash == "" {
			return nil, &RPCError{Code: CodeInternal, Message: "agent returned no transaction hash"}
		}
		return json.Marshal(out.TxHash)

	default:
		var out struct {
			Result json.RawMessage `json:"result"`
		}
		in := map[string]any{"origin": w.client.origin, "method": args.Method, "params": args.Params}
		if err := w.client.post(ctx, "/wallet/rpc", in, &out); err != nil {
			return nil, err
		}
		return out.Result, nil
	}
}

func firstParam(args Args, out any) error {
	if len(args.Params) == 0 {
		return errors.New("missing params")
	}
	b, err := json.Marshal(args.Params[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (w *AgentWallet) On(event string, fn Listener) ListenerID {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	if w.listeners[event] == nil {
		w.listeners[event] = map[ListenerID]Listener{}
	}
	w.listeners[event][id] = fn

	if w.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		w.stop = cancel
		go w.stream(ctx)
	}
	return id
}

func (w *AgentWallet) RemoveListener(event string, id ListenerID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.listeners[event], id)
	if len(w.listeners[event]) == 0 {
		delete(w.listeners, event)
	}
	if len(w.listeners) == 0 && w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

// ListenerCount is the number of registered listeners across all events.
func (w *AgentWallet) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.listeners {
		n += len(m)
	}
	return n
}

// Close stops the event stream and drops every listener.
func (w *AgentWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = map[string]map[ListenerID]Listener{}
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

type agentEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (w *AgentWallet) eventsURL() string {
	u := *w.client.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/wallet/events"
	return u.String()
}

func (w *AgentWallet) stream(ctx context.Context) {
	cfg := retry.DefaultConfig()
	cfg.InitialDelayBeforeRetrying = 500 * time.Millisecond
	cfg.MaxDelayBeforeRetrying = 15 * time.Second

	_, _ = retry.Retry(ctx, cfg,
		func(ctx context.Context) ([]interface{}, error) {
			return nil, w.readEvents(ctx)
		},
		nil,
		"wallet agent event stream")
	log.Info("wallet event stream stopped", "wallet", w.Label())
}

func (w *AgentWallet) readEvents(ctx context.Context) error {
	header := http.Header{}
	if tok := w.client.token.Get(); tok != "" {
		header.Set(extensionPairHeader, tok)
	}
	conn, _, err := w.dialer.DialContext(ctx, w.eventsURL(), header)
	if err != nil {
		return errors.Wrap(err, "dial wallet events")
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev agentEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read wallet event")
		}
		w.dispatch(ev.Event, ev.Data)
	}
}

func (w *AgentWallet) dispatch(event string, data json.RawMessage) {
	w.mu.Lock()
	fns := make([]Listener, 0, len(w.listeners[event]))
	for _, fn := range w.listeners[event] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

// AgentTronWallet drives the TRON signer of a paired quantum-auth agent.
type AgentTronWallet struct {
	client *agentClient
}

func NewAgentTronWallet(cfg AgentConfig) (*AgentTronWallet, error) {
	c, err := newAgentClient(cfg)
	if err != nil {
		return nil, err
	}
	return &AgentTronWallet{client: c}, nil
}

func (w *AgentTronWallet) Label() string { return "quantumauth-agent-tron:" + w.client.base.Host }

func (w *AgentTronWallet) BrandFlags() map[string]bool {
	return map[string]bool{BrandFlag: true}
}

func (w *AgentTronWallet) ConstructorName() string { return agentConstructor }

func (w *AgentTronWallet) TronAddress(ctx context.Context) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := w.client.post(ctx, "/tron/account", map[string]string{"origin": w.client.origin}, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Address), nil
}

func (w *AgentTronWallet) SignTransaction(ctx context.Context, tx *core.Transaction) (*core.Transaction, error) {
	if tx == nil {
		return nil, errors.New("provider: nil transaction")
	}
	raw, err := proto.Marshal(tx)
	if err != nil {
		return nil, errors.Wrap(err, "marshal tron transaction")
	}

	var out struct {
		Signed string `json:"signedTransaction"`
	}
	in := map[string]string{"origin": w.client.origin, "transaction": hex.EncodeToString(raw)}
	if err := w.client.post(ctx, "/tron/sign", in, &out); err != nil {
		return nil, err
	}

	signedRaw, err := hex.DecodeString(strings.TrimPrefix(out.Signed, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decode signed tron transaction")
	}
	signed := &core.Transaction{}
	if err := proto.Unmarshal(signedRaw, signed); err != nil {
		return nil, errors.Wrap(err, "unmarshal signed tron transaction")
	}
	if len(signed.GetSignature()) == 0 {
		return nil, &RPCError{Code: CodeUserRejected, Message: "transaction was not signed"}
	}
	return signed, nil
}
