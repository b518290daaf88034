package http

import "time"

const (
	requestIDHeader = "X-Request-ID"

	defaultReadHeaderTimeout = 5 * time.Second
	// /payments and /tx hold the request open while a confirmation is awaited.
	defaultWriteTimeout = 6 * time.Minute

	notificationsDefault = 20
)

const (
	errInvalidJSON      = "invalid json"
	errForbidden        = "forbidden"
	errForbiddenHost    = "forbidden host"
	errNotConnected     = "wallet not connected"
	errUnknownChain     = "unknown chain"
	errInvalidAmount    = "invalid amount"
	errServiceDisabled  = "not configured"
	errMissingTxHash    = "missing transaction hash"
	errConnectionFailed = "connection failed"
	errMissingPath      = "invalid JSON or missing page path"
	errMissingToken     = "missing pairing token"
)
