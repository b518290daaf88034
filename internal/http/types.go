package http

import (
	"github.com/quantumauth-io/quantum-pay-client/internal/balance"
	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/connection"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

type errorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Title       string `json:"title,omitempty"`
	Recoverable *bool  `json:"recoverable,omitempty"`
}

type connectReq struct {
	ProviderName string          `json:"providerName"`
	Family       provider.Family `json:"family"`
	Path         string          `json:"path" binding:"required"`
}

func (r connectReq) toRequest() connection.Request {
	return connection.Request{
		ProviderName: r.ProviderName,
		Family:       r.Family,
		Context:      provider.Context{Path: r.Path},
	}
}

type pairReq struct {
	Token string `json:"token" binding:"required"`
}

type sessionRes struct {
	Session session.WalletSession `json:"session"`
}

type switchReq struct {
	Chain chains.Key `json:"chain" binding:"required"`
}

type switchRes struct {
	Switched bool       `json:"switched"`
	Chain    chains.Key `json:"chain"`
}

type chainsRes struct {
	Chains []chains.Descriptor `json:"chains"`
}

type balanceRes struct {
	Balance     balance.Snapshot     `json:"balance"`
	Sufficiency *balance.Sufficiency `json:"sufficiency,omitempty"`
}

type txStatusRes struct {
	Chain       chains.Key     `json:"chain"`
	TxHash      string         `json:"txHash"`
	Status      confirm.Status `json:"status"`
	ExplorerURL string         `json:"explorerUrl"`
}

type explorerRes struct {
	URL   string `json:"url"`
	Known bool   `json:"known"`
}
