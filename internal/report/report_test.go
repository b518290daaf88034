package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/transfer"
)

func sampleResult() transfer.Result {
	return transfer.Result{
		Success:  true,
		TxHash:   "0xabc",
		ChainID:  "0x89",
		ChainKey: chains.Polygon,
		Amount:   "250",
		From:     "0x1111111111111111111111111111111111111111",
		To:       "0x2222222222222222222222222222222222222222",
	}
}

func TestHTTPReporter(t *testing.T) {
	var got Event
	var idem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != participationPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		idem = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ev := NewEvent(EventSubmitted, "part-1", sampleResult())
	require.NoError(t, NewHTTPReporter(srv.URL+"/", nil).Report(context.Background(), ev))
	require.Equal(t, ev.ID, idem)
	require.Equal(t, "part-1", got.ParticipationID)
	require.Equal(t, "0xabc", got.Result.TxHash)
}

func TestHTTPReporterErrors(t *testing.T) {
	rejected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"unknown participation"}`))
	}))
	defer rejected.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer down.Close()

	ev := NewEvent(EventSubmitted, "", sampleResult())
	require.ErrorContains(t, NewHTTPReporter(rejected.URL, nil).Report(context.Background(), ev), "unknown participation")
	require.ErrorContains(t, NewHTTPReporter(down.URL, nil).Report(context.Background(), ev), "502")
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Report(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func TestReporterFansOutAndSwallowsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("broker down")}

	r := NewReporter().With("ok", ok).With("bad", bad).With("none", nil)
	r.Report(context.Background(), NewEvent(EventConfirmed, "", sampleResult()))

	require.Len(t, ok.events, 1)
	require.Len(t, bad.events, 1)
	require.Equal(t, EventConfirmed, ok.events[0].Type)
}

func TestKafkaPublisherClosed(t *testing.T) {
	k := NewKafkaPublisher([]string{"127.0.0.1:1"}, "")
	require.Equal(t, DefaultTopic, k.writer.Topic)
	require.NoError(t, k.Close())
	require.NoError(t, k.Close())
	require.Error(t, k.Report(context.Background(), NewEvent(EventSubmitted, "", sampleResult())))
}
