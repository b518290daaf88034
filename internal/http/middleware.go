package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
)

const corsMaxAge = 10 * time.Minute

func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: errForbidden})
			return
		}
		c.Next()
	}
}

// safeHostOnly rejects requests whose Host header is not a loopback name,
// which is what a DNS-rebinding page would send.
func safeHostOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isSafeLocalHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: errForbiddenHost})
			return
		}
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())

		if status >= http.StatusInternalServerError {
			log.Warn("request failed", "route", route, "status", status, "request_id", c.GetString(requestIDHeader))
		}
	}
}
