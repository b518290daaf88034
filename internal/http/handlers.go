package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-pay-client/internal/balance"
	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/connection"
	"github.com/quantumauth-io/quantum-pay-client/internal/payment"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

func (s *Server) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// POST /wallet/connect
func (s *Server) Connect(c *gin.Context) {
	// the page path decides whether wallet interaction is allowed at all
	var req connectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, errMissingPath)
		return
	}

	sess, err := s.deps.Wallets.Connect(c.Request.Context(), req.toRequest())
	if err == nil {
		c.JSON(http.StatusOK, sessionRes{Session: sess})
		return
	}

	var ce *connection.ConnectError
	switch {
	case errors.Is(err, session.ErrConnectInFlight):
		abort(c, http.StatusConflict, err.Error())
	case errors.As(err, &ce):
		status := http.StatusBadGateway
		switch ce.Failure.Kind {
		case connection.KindProviderNotFound:
			status = http.StatusNotFound
		case connection.KindUserRejected, connection.KindPending, connection.KindLocked:
			status = http.StatusConflict
		case connection.KindTimeout:
			status = http.StatusGatewayTimeout
		case connection.KindNotPaired:
			status = http.StatusPreconditionRequired
		}
		recoverable := ce.Failure.Recoverable
		c.AbortWithStatusJSON(status, errorResponse{
			Error:       ce.Failure.Message,
			Kind:        string(ce.Failure.Kind),
			Title:       ce.Failure.Title,
			Recoverable: &recoverable,
		})
	default:
		abort(c, http.StatusInternalServerError, errConnectionFailed)
	}
}

// POST /wallet/disconnect
func (s *Server) Disconnect(c *gin.Context) {
	c.JSON(http.StatusOK, sessionRes{Session: s.deps.Wallets.Disconnect(c.Request.Context())})
}

// GET /wallet/session
func (s *Server) Session(c *gin.Context) {
	c.JSON(http.StatusOK, sessionRes{Session: s.deps.Wallets.Session()})
}

// GET /chains lists the chains the connected wallet can drive, or every
// supported chain when nothing is connected.
func (s *Server) Chains(c *gin.Context) {
	if w := s.deps.Wallets.Wallet(); w != nil {
		c.JSON(http.StatusOK, chainsRes{Chains: s.deps.Registry.ForWallet(w)})
		return
	}
	c.JSON(http.StatusOK, chainsRes{Chains: s.deps.Registry.All()})
}

// POST /chains/switch
func (s *Server) SwitchChain(c *gin.Context) {
	var req switchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, errInvalidJSON)
		return
	}
	key, err := chains.ParseKey(string(req.Chain))
	if err != nil {
		abort(c, http.StatusBadRequest, errUnknownChain)
		return
	}
	w := s.deps.Wallets.Wallet()
	if w == nil {
		abort(c, http.StatusConflict, errNotConnected)
		return
	}
	c.JSON(http.StatusOK, switchRes{
		Switched: s.deps.Switcher.SwitchChain(c.Request.Context(), w, key),
		Chain:    key,
	})
}

// GET /balance?chain=polygon&required=100
func (s *Server) Balance(c *gin.Context) {
	key, err := chains.ParseKey(c.Query("chain"))
	if err != nil {
		abort(c, http.StatusBadRequest, errUnknownChain)
		return
	}
	sess := s.deps.Wallets.Session()
	w := s.deps.Wallets.Wallet()
	if !sess.Connected() || w == nil {
		abort(c, http.StatusConflict, errNotConnected)
		return
	}

	var required *decimal.Decimal
	if raw := c.Query("required"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			abort(c, http.StatusBadRequest, errInvalidAmount)
			return
		}
		required = &d
	}

	res := balanceRes{Balance: s.deps.Balances.GetBalance(c.Request.Context(), w, sess.Address, key)}
	if required != nil {
		suff := balance.Check(res.Balance, *required)
		res.Sufficiency = &suff
	}
	c.JSON(http.StatusOK, res)
}

// POST /payments
func (s *Server) Pay(c *gin.Context) {
	var req payment.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, errInvalidJSON)
		return
	}
	key, err := chains.ParseKey(string(req.ChainKey))
	if err != nil {
		abort(c, http.StatusBadRequest, errUnknownChain)
		return
	}
	req.ChainKey = key
	if !req.Amount.IsPositive() {
		abort(c, http.StatusBadRequest, errInvalidAmount)
		return
	}
	if s.deps.Checkout == nil {
		abort(c, http.StatusServiceUnavailable, errServiceDisabled)
		return
	}

	out := s.deps.Checkout.Pay(c.Request.Context(), req)
	status := http.StatusOK
	switch {
	case out.Stage == payment.StageSession:
		status = http.StatusConflict
	case !out.Submitted() && out.Stage != payment.StageDone:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, out)
}

// GET /tx/:chain/:hash waits, within the poller bound, for the transaction to settle.
func (s *Server) TxStatus(c *gin.Context) {
	key, err := chains.ParseKey(c.Param("chain"))
	if err != nil {
		abort(c, http.StatusBadRequest, errUnknownChain)
		return
	}
	hash := c.Param("hash")
	if hash == "" {
		abort(c, http.StatusBadRequest, errMissingTxHash)
		return
	}
	if s.deps.Poller == nil {
		abort(c, http.StatusServiceUnavailable, errServiceDisabled)
		return
	}

	st, err := s.deps.Poller.WaitForConfirmation(c.Request.Context(), key, hash)
	switch {
	case errors.Is(err, confirm.ErrBadTxHash):
		abort(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, confirm.ErrNoNode), errors.Is(err, confirm.ErrNoRPC):
		abort(c, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		abort(c, http.StatusGatewayTimeout, err.Error())
		return
	}

	d, _ := s.deps.Registry.Lookup(key)
	url, _ := s.deps.Registry.ExplorerTxURL(d.ReportedChainID(), hash)
	c.JSON(http.StatusOK, txStatusRes{Chain: key, TxHash: hash, Status: st, ExplorerURL: url})
}

// GET /explorer/:chainId/:hash
func (s *Server) Explorer(c *gin.Context) {
	url, known := s.deps.Registry.ExplorerTxURL(c.Param("chainId"), c.Param("hash"))
	c.JSON(http.StatusOK, explorerRes{URL: url, Known: known})
}

// GET /notifications?limit=20
func (s *Server) Notifications(c *gin.Context) {
	if s.deps.Feed == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []any{}})
		return
	}
	limit := notificationsDefault
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abort(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"notifications": s.deps.Feed.Recent(limit)})
}

// GET /pairing
func (s *Server) PairingStatus(c *gin.Context) {
	if s.deps.Pairing == nil {
		abort(c, http.StatusServiceUnavailable, errServiceDisabled)
		return
	}
	c.JSON(http.StatusOK, s.deps.Pairing.Status())
}

// POST /pairing stores the token the agent handed out and uses it from the next request on.
func (s *Server) Pair(c *gin.Context) {
	if s.deps.Pairing == nil {
		abort(c, http.StatusServiceUnavailable, errServiceDisabled)
		return
	}
	var req pairReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		abort(c, http.StatusBadRequest, errMissingToken)
		return
	}
	if err := s.deps.Pairing.Pair(req.Token); err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.deps.Pairing.Status())
}

// DELETE /pairing
func (s *Server) Unpair(c *gin.Context) {
	if s.deps.Pairing == nil {
		abort(c, http.StatusServiceUnavailable, errServiceDisabled)
		return
	}
	if err := s.deps.Pairing.Unpair(); err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.deps.Pairing.Status())
}
