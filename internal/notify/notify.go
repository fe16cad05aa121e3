// Package notify publishes run-completion events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JonMunkholm/qbank/internal/config"
	"github.com/JonMunkholm/qbank/internal/core"
)

// RunCompleted is the message published once per finished run.
type RunCompleted struct {
	RunID         string    `json:"run_id"`
	Source        string    `json:"source"`
	DryRun        bool      `json:"dry_run"`
	Files         int       `json:"files"`
	FailedFiles   int       `json:"failed_files"`
	Imported      int       `json:"imported"`
	FailedBatches int       `json:"failed_batches"`
	StoreCount    *int64    `json:"store_count"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
}

// NewRunCompleted summarizes a run result for publishing.
func NewRunCompleted(res *core.RunResult) RunCompleted {
	msg := RunCompleted{
		RunID:         res.RunID,
		Source:        res.Source,
		DryRun:        res.DryRun,
		Files:         len(res.Files),
		Imported:      res.Imported,
		FailedBatches: res.FailedBatches,
		StoreCount:    res.StoreCount,
		StartedAt:     res.StartedAt.UTC(),
		DurationMS:    res.Duration.Milliseconds(),
	}
	for _, f := range res.Files {
		if f.Failure != nil {
			msg.FailedFiles++
		}
	}
	return msg
}

// Notifier is a core.Notifier that owns a connection.
type Notifier interface {
	core.Notifier
	Close() error
}

// New returns a Kafka notifier, or Nop when no brokers are configured.
func New(cfg config.NotifyConfig) Notifier {
	if len(cfg.KafkaBrokers) == 0 {
		return Nop{}
	}
	return NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) RunCompleted(context.Context, *core.RunResult) error { return nil }
func (Nop) Close() error                                        { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes one JSON message per run, keyed by run ID.
type Kafka struct {
	w messageWriter
}

// NewKafka creates a notifier writing to topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}}
}

// RunCompleted publishes res.
func (k *Kafka) RunCompleted(ctx context.Context, res *core.RunResult) error {
	value, err := json.Marshal(NewRunCompleted(res))
	if err != nil {
		return fmt.Errorf("encode run event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(res.RunID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("run_completed")},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
