package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
)

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), observe(), loopbackOnly())

	if len(s.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.allowedOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", requestIDHeader},
			MaxAge:       corsMaxAge,
		}))
	}

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	guarded := r.Group("/", safeHostOnly())
	{
		guarded.POST("/wallet/connect", s.Connect)
		guarded.POST("/wallet/disconnect", s.Disconnect)
		guarded.GET("/wallet/session", s.Session)

		guarded.GET("/chains", s.Chains)
		guarded.POST("/chains/switch", s.SwitchChain)

		guarded.GET("/balance", s.Balance)
		guarded.POST("/payments", s.Pay)
		guarded.GET("/tx/:chain/:hash", s.TxStatus)
		guarded.GET("/explorer/:chainId/:hash", s.Explorer)

		guarded.GET("/notifications", s.Notifications)

		guarded.GET("/pairing", s.PairingStatus)
		guarded.POST("/pairing", s.Pair)
		guarded.DELETE("/pairing", s.Unpair)
	}

	return r
}
