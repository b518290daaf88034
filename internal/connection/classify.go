package connection

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

type Kind string

const (
	KindUserRejected     Kind = "user_rejected"
	KindPending          Kind = "request_pending"
	KindLocked           Kind = "wallet_locked"
	KindTimeout          Kind = "timeout"
	KindProviderNotFound Kind = "provider_not_found"
	KindNotPaired        Kind = "agent_not_paired"
	KindFailed           Kind = "failed"
)

// Failure is the user-facing outcome of a failed connect.
type Failure struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Classify maps a connect error to its user-facing outcome. Wallet error
// codes decide the category; the accompanying message text never does.
func Classify(err error) Failure {
	if code, ok := provider.CodeOf(err); ok {
		switch code {
		case provider.CodeUserRejected:
			return Failure{
				Kind:        KindUserRejected,
				Title:       "Connection Cancelled",
				Message:     "You cancelled the connection request. Try again when ready.",
				Recoverable: true,
			}
		case provider.CodeRequestPending:
			return Failure{
				Kind:        KindPending,
				Title:       "Connection Pending",
				Message:     "A connection request is already open. Check your wallet.",
				Recoverable: true,
			}
		case provider.CodeInternal:
			return Failure{
				Kind:        KindLocked,
				Title:       "Wallet Locked",
				Message:     "Unlock your wallet and try again.",
				Recoverable: true,
			}
		}
	}

	switch {
	case provider.IsNotPaired(err):
		return Failure{
			Kind:        KindNotPaired,
			Title:       "Agent Not Paired",
			Message:     "The QuantumAuth agent does not recognise this client. Pair it again and retry.",
			Recoverable: true,
		}
	case errors.Is(err, ErrProviderNotFound):
		return Failure{
			Kind:    KindProviderNotFound,
			Title:   "Wallet Not Found",
			Message: "No compatible QuantumAuth wallet was found. Install the QuantumAuth extension and pair it with this device.",
		}
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Failure{
			Kind:        KindTimeout,
			Title:       "Connection Timeout",
			Message:     "The wallet did not respond in time. Open your wallet and try again.",
			Recoverable: true,
		}
	}

	return Failure{
		Kind:        KindFailed,
		Title:       "Connection Failed",
		Message:     fmt.Sprintf("Connection failed: %s", provider.MessageOf(err)),
		Recoverable: true,
	}
}

// ConnectError carries the classified failure alongside the cause.
type ConnectError struct {
	Failure Failure
	Err     error
}

func (e *ConnectError) Error() string { return e.Failure.Message }

func (e *ConnectError) Unwrap() error { return e.Err }
