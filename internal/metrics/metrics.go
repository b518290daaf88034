// Package metrics holds the Prometheus collectors for the payment agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumpay_connect_attempts_total",
			Help: "Wallet connect attempts by outcome kind",
		},
		[]string{"outcome"},
	)

	SessionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantumpay_session_status",
			Help: "1 for the current wallet session status, 0 otherwise",
		},
		[]string{"status"},
	)

	BalanceReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumpay_balance_reads_total",
			Help: "Stablecoin balance reads by chain and outcome",
		},
		[]string{"chain", "outcome"},
	)

	Transfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumpay_transfers_total",
			Help: "Stablecoin transfers submitted by chain and outcome",
		},
		[]string{"chain", "outcome"},
	)

	ConfirmationWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantumpay_confirmation_wait_seconds",
			Help:    "Time spent waiting for a transaction to be mined",
			Buckets: []float64{1, 3, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"chain", "status"},
	)

	DirectoryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumpay_directory_lookups_total",
			Help: "Company wallet lookups by source (cache, remote, fallback, refused)",
		},
		[]string{"source"},
	)

	Reports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumpay_reports_total",
			Help: "Payment reports by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantumpay_http_request_duration_seconds",
			Help:    "Duration of local API requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 30},
		},
		[]string{"route", "method", "status"},
	)
)

// Outcome labels a boolean result.
func Outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// SetSessionStatus flips the status gauge so exactly one label is 1.
func SetSessionStatus(current string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		SessionStatus.WithLabelValues(s).Set(v)
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
