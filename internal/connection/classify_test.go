package connection

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

func TestClassifyByCodeIgnoresMessage(t *testing.T) {
	for _, msg := range []string{"", "User rejected the request.", "timeout", "wallet locked"} {
		f := Classify(&provider.RPCError{Code: 4001, Message: msg})
		require.Equal(t, "Connection Cancelled", f.Title, msg)
		require.Equal(t, KindUserRejected, f.Kind)

		f = Classify(errors.Wrap(&provider.RPCError{Code: -32002, Message: msg}, "eth_requestAccounts"))
		require.Equal(t, "Connection Pending", f.Title, msg)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  Kind
		title string
	}{
		{"locked", &provider.RPCError{Code: -32603, Message: "internal"}, KindLocked, "Wallet Locked"},
		{"unauthorized code", &provider.RPCError{Code: 4100, Message: "pair first"}, KindFailed, "Connection Failed"},
		{"agent not paired", &provider.AgentError{Status: 428, Message: "not paired"}, KindNotPaired, "Agent Not Paired"},
		{"agent guard", &provider.AgentError{Status: 403, Message: "forbidden origin"}, KindFailed, "Connection Failed"},
		{"timeout", errors.Wrap(ErrTimeout, "x"), KindTimeout, "Connection Timeout"},
		{"deadline", context.DeadlineExceeded, KindTimeout, "Connection Timeout"},
		{"not found", ErrProviderNotFound, KindProviderNotFound, "Wallet Not Found"},
		{"other", &provider.RPCError{Code: -32000, Message: "execution reverted"}, KindFailed, "Connection Failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := Classify(tc.err)
			require.Equal(t, tc.kind, f.Kind)
			require.Equal(t, tc.title, f.Title)
		})
	}

	f := Classify(&provider.RPCError{Code: -32000, Message: "execution reverted"})
	require.Equal(t, "Connection failed: execution reverted", f.Message)
	require.False(t, Classify(ErrProviderNotFound).Recoverable)

	f = Classify(errors.Wrap(&provider.AgentError{Status: 403, Message: "forbidden origin"}, "eth_requestAccounts"))
	require.Equal(t, "Connection failed: forbidden origin", f.Message)
}
