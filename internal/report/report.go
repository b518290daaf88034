// Package report records payment outcomes with the participation API and
// on the payments event stream.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/segmentio/kafka-go"

	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
	"github.com/quantumauth-io/quantum-pay-client/internal/transfer"
)

const (
	EventSubmitted = "payment.submitted"
	EventConfirmed = "payment.confirmed"
	EventFailed    = "payment.failed"

	participationPath = "/participations/payment"
	DefaultTopic      = "quantumpay.payments"
)

// Event is one payment outcome.
type Event struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	ParticipationID string          `json:"participationId,omitempty"`
	Result          transfer.Result `json:"result"`
	Confirmed       bool            `json:"confirmed"`
	ExplorerURL     string          `json:"explorerUrl,omitempty"`
	At              time.Time       `json:"at"`
}

func NewEvent(typ, participationID string, res transfer.Result) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            typ,
		ParticipationID: participationID,
		Result:          res,
		At:              time.Now().UTC(),
	}
}

// Sink receives payment events.
type Sink interface {
	Report(ctx context.Context, ev Event) error
}

// HTTPReporter posts events to the participation-record API.
type HTTPReporter struct {
	url    string
	client *http.Client
}

func NewHTTPReporter(apiURL string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPReporter{url: strings.TrimRight(apiURL, "/") + participationPath, client: client}
}

func (r *HTTPReporter) Report(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "build report request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.ID)

	res, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "POST participation payment")
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return errors.Newf("POST participation payment: %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err == nil && out.Success != nil && !*out.Success {
		return errors.Newf("participation api rejected payment: %s", out.Message)
	}
	return nil
}

// KafkaPublisher writes events keyed by transaction hash.
type KafkaPublisher struct {
	mu     sync.Mutex
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *KafkaPublisher) Report(ctx context.Context, ev Event) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.writer == nil {
		return errors.New("kafka publisher closed")
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal payment event")
	}
	key := ev.Result.TxHash
	if key == "" {
		key = ev.ID
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return errors.Wrap(err, "write payment event to kafka")
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.writer == nil {
		return nil
	}
	err := k.writer.Close()
	k.writer = nil
	return err
}

// Reporter fans an event out to every sink. Sink failures are logged and
// never surface to the payment flow.
type Reporter struct {
	sinks map[string]Sink
}

func NewReporter() *Reporter {
	return &Reporter{sinks: map[string]Sink{}}
}

// With registers a named sink; nil sinks are ignored.
func (r *Reporter) With(name string, s Sink) *Reporter {
	if s != nil {
		r.sinks[name] = s
	}
	return r
}

func (r *Reporter) Report(ctx context.Context, ev Event) {
	for name, s := range r.sinks {
		if err := s.Report(ctx, ev); err != nil {
			metrics.Reports.WithLabelValues(name, "failure").Inc()
			log.Warn("payment report failed", "sink", name, "event", ev.Type, "tx_hash", ev.Result.TxHash, "error", err)
			continue
		}
		metrics.Reports.WithLabelValues(name, "success").Inc()
	}
}
