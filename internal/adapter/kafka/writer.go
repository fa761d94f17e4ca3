// Package kafka publishes run-completion notifications so downstream
// renderers can pick up a finished run without polling the output directory.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/domain"
)

// RunCompletion is the notification payload for one aggregated run.
type RunCompletion struct {
	Run         string    `json:"run"` // YYYYMMDDHH
	Document    string    `json:"document"`
	Fires       int       `json:"fires"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier produces run-completion messages.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a producer for the configured completion topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// NotifyRunComplete publishes one completion message for a run.
func (n *Notifier) NotifyRunComplete(ctx context.Context, run domain.RunTime, document string, fires int) error {
	msg, err := serializeToMessage(RunCompletion{
		Run:         run.Stamp(),
		Document:    document,
		Fires:       fires,
		CompletedAt: domain.Now(),
	})
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify run %s: %w", run.Stamp(), err)
	}
	n.logger.Info("published run completion", "run", run, "fires", fires)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a RunCompletion into a Kafka message keyed by
// the run stamp, so a compacted topic keeps one message per run.
func serializeToMessage(rc RunCompletion) (kafkago.Message, error) {
	data, err := json.Marshal(rc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run completion: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rc.Run),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "completed_at", Value: []byte(rc.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
