package provider

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// EIP-1193 and JSON-RPC error codes the payment flow branches on.
const (
	CodeUserRejected   = 4001
	CodeUnauthorized   = 4100
	CodeUnsupported    = 4200
	CodeDisconnected   = 4900
	CodeChainNotAdded  = 4902
	CodeRequestPending = -32002
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

var (
	ErrNoCallMethod = errors.New("provider: no usable call method")
	ErrEmptyResult  = errors.New("provider: empty result")
)

// RPCError is an error reported by the wallet itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// AgentError is a refusal from the agent's HTTP layer (origin, host or
// pairing guards, unknown routes). It never carries a wallet error code.
type AgentError struct {
	Status  int
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent http %d: %s", e.Status, e.Message)
}

// NotPaired reports whether the agent refused for a missing or stale pairing token.
func (e *AgentError) NotPaired() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusPreconditionRequired
}

// IsNotPaired reports whether err is an agent pairing refusal.
func IsNotPaired(err error) bool {
	var agentErr *AgentError
	return errors.As(err, &agentErr) && agentErr.NotPaired()
}

// CodeOf extracts the wallet error code from anywhere in err's chain.
func CodeOf(err error) (int, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return 0, false
}

// MessageOf returns the wallet's own message when err carries one.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Message != "" {
		return rpcErr.Message
	}
	var agentErr *AgentError
	if errors.As(err, &agentErr) && agentErr.Message != "" {
		return agentErr.Message
	}
	return err.Error()
}
