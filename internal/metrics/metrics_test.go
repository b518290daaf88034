package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSetSessionStatus(t *testing.T) {
	all := []string{"idle", "connecting", "connected", "error"}

	SetSessionStatus("connected", all...)
	require.Equal(t, 1.0, testutil.ToFloat64(SessionStatus.WithLabelValues("connected")))
	require.Equal(t, 0.0, testutil.ToFloat64(SessionStatus.WithLabelValues("idle")))

	SetSessionStatus("idle", all...)
	require.Equal(t, 0.0, testutil.ToFloat64(SessionStatus.WithLabelValues("connected")))
	require.Equal(t, 1.0, testutil.ToFloat64(SessionStatus.WithLabelValues("idle")))
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "success", Outcome(true))
	require.Equal(t, "failure", Outcome(false))
}
