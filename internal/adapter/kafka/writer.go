package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/trip-link-parser/internal/config"
	"github.com/couchcryptid/trip-link-parser/internal/domain"
)

// Writer publishes parsed suggestions to a Kafka topic.
// It implements service.Publisher.
type Writer struct {
	writer  *kafkago.Writer
	brokers []string
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured suggestion topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSuggestionTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, brokers: cfg.KafkaBrokers, clock: clockwork.NewRealClock(), logger: logger}
}

// Publish writes one suggestion, keyed by its deterministic id so repeated
// parses of a link land on the same partition.
func (w *Writer) Publish(ctx context.Context, kind domain.LinkKind, s domain.SegmentSuggestion) error {
	msg, err := serializeToMessage(kind, s, w.clock.Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write suggestion %s: %w", msg.Key, err)
	}
	w.logger.Debug("suggestion published", "key", string(msg.Key), "kind", kind)
	return nil
}

// CheckReadiness dials the first broker.
func (w *Writer) CheckReadiness(ctx context.Context) error {
	if len(w.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafkago.DialContext(ctx, "tcp", w.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka broker unreachable: %w", err)
	}
	return conn.Close()
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a suggestion into a Kafka message.
func serializeToMessage(kind domain.LinkKind, s domain.SegmentSuggestion, parsedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize suggestion: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.SuggestionID(s)),
		Value: data,
		Time:  parsedAt,
		Headers: []kafkago.Header{
			{Key: "link_kind", Value: []byte(kind)},
			{Key: "segment_type", Value: []byte(strconv.Itoa(int(s.SegmentTypeID)))},
			{Key: "parsed_at", Value: []byte(parsedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
