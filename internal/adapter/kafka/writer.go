package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/nwp-forecast-service/internal/config"
	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

const (
	headerLocation  = "location"
	headerFetchedAt = "fetched_at"
)

// Writer publishes forecast snapshots to a Kafka topic.
// It implements refresh.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured forecast topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one snapshot keyed by location, so every refresh of the same
// location lands on the same partition in order.
func (w *Writer) Publish(ctx context.Context, s domain.Snapshot) error {
	msg, err := serializeToMessage(s)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	w.logger.Debug("snapshot published", "topic", w.writer.Topic, "location", s.Location, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Snapshot into a Kafka message.
func serializeToMessage(s domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.Location),
		Value: data,
		Headers: []kafkago.Header{
			{Key: headerLocation, Value: []byte(s.Location)},
			{Key: headerFetchedAt, Value: []byte(s.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}

// DecodeMessage turns a message written by Writer back into a Snapshot.
func DecodeMessage(msg kafkago.Message) (domain.Snapshot, error) {
	var s domain.Snapshot
	if err := json.Unmarshal(msg.Value, &s); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Forecast == nil {
		return domain.Snapshot{}, errors.New("decode snapshot: missing forecast")
	}
	return s, nil
}
