// Package journal publishes question lifecycle events to Kafka. The journal
// is strictly best-effort: a broker outage is logged and never blocks a
// lifecycle transition.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stpbots/questioner/internal/config"
)

const (
	produceTimeout = 5 * time.Second
	maxRetries     = 3
)

// Event is one serialized lifecycle transition.
type Event struct {
	Event  string         `json:"event"`
	Token  string         `json:"token,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Time   time.Time      `json:"time"`
}

// Journal writes lifecycle events to a Kafka topic.
type Journal struct {
	writer *kafka.Writer
	topic  string
}

// New creates a Journal, or nil when the journal is disabled in the
// configuration. A nil Journal is safe to pass around: the engine treats a
// nil Recorder as "no journal".
func New(cfg config.JournalConfig) *Journal {
	if !cfg.Enabled {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Journal{writer: w, topic: cfg.Topic}
}

// Record serializes and produces one event, retrying transient leadership
// errors with a short backoff.
func (j *Journal) Record(ctx context.Context, event, token string, fields map[string]any) {
	payload, err := json.Marshal(Event{Event: event, Token: token, Fields: fields, Time: time.Now()})
	if err != nil {
		slog.Error("Journal: marshal failed", "event", event, "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(token),
		Value: payload,
		Time:  time.Now(),
	}

	var writeErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
		writeCtx, cancel := context.WithTimeout(ctx, produceTimeout)
		writeErr = j.writer.WriteMessages(writeCtx, msg)
		cancel()
		if writeErr == nil {
			return
		}
		if errors.Is(writeErr, kafka.NotLeaderForPartition) || errors.Is(writeErr, kafka.LeaderNotAvailable) {
			continue
		}
		break
	}
	slog.Error("Journal: produce failed", "event", event, "topic", j.topic, "error", writeErr)
}

// Close flushes and closes the underlying writer.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.writer.Close()
}
