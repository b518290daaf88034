// Package http is the local API the payment pages talk to. It only
// accepts loopback connections.
package http

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantumauth-io/quantum-pay-client/internal/balance"
	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/connection"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/pairing"
	"github.com/quantumauth-io/quantum-pay-client/internal/payment"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

// Wallets is the connection surface the API drives. *connection.Manager satisfies it.
type Wallets interface {
	Connect(ctx context.Context, req connection.Request) (session.WalletSession, error)
	Disconnect(ctx context.Context) session.WalletSession
	Session() session.WalletSession
	Wallet() provider.Wallet
}

// Pairing stores and rotates the wallet agent token. *pairing.Link satisfies it.
type Pairing interface {
	Pair(token string) error
	Unpair() error
	Status() pairing.Status
}

type Deps struct {
	Wallets  Wallets
	Registry *chains.Registry
	Switcher *chains.Switcher
	Balances *balance.Reader
	Checkout *payment.Checkout
	Poller   *confirm.Poller
	Feed     *notify.Feed
	Pairing  Pairing
}

type Server struct {
	deps           Deps
	allowedOrigins []string
	engine         *gin.Engine
}

func NewServer(deps Deps, allowedOrigins []string) *Server {
	s := &Server{
		deps:           deps,
		allowedOrigins: uniqueStrings(allowedOrigins),
	}
	s.engine = NewRouter(s)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// HTTPServer wraps the router in a server with the agent's timeouts.
// Addresses that are not loopback are refused.
func (s *Server) HTTPServer(host, port string) (*http.Server, error) {
	if !isSafeLocalHost(host) {
		return nil, errNonLoopbackBind(host)
	}
	return &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           s,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
	}, nil
}
